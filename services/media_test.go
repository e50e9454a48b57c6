package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

type recordingBlobStore struct {
	keys []string
	err  error
}

func (b *recordingBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	b.keys = append(b.keys, key)
	return "https://cdn.example.com/" + key, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestMediaPut_Primary(t *testing.T) {
	primary := &recordingBlobStore{}
	svc := NewMediaService(primary, storage.NewLocalBlobStore(t.TempDir()))

	url, err := svc.Put(context.Background(), "fachada.PNG", "image/png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if len(primary.keys) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(primary.keys))
	}
	key := primary.keys[0]
	if !strings.HasPrefix(key, "properties/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || !strings.HasPrefix(parts[2], parts[1]) || len(parts[1]) != 2 {
		t.Fatalf("expected content-addressed key, got %q", key)
	}
	if url != "https://cdn.example.com/"+key {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestMediaPut_FallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	svc := NewMediaService(&recordingBlobStore{err: errors.New("bucket unreachable")}, storage.NewLocalBlobStore(dir))

	url, err := svc.Put(context.Background(), "", "", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("expected file:// url, got %q", url)
	}

	key := MediaKey(pngHeader, "", "image/png")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("expected local file: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Fatal("local file content mismatch")
	}
}

func TestMediaPut_NoPrimaryUsesFallback(t *testing.T) {
	fallback := &recordingBlobStore{}
	svc := NewMediaService(nil, fallback)

	if _, err := svc.Put(context.Background(), "a.jpg", "image/jpeg", bytes.NewReader([]byte("jpeg"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if len(fallback.keys) != 1 || !strings.HasSuffix(fallback.keys[0], ".jpg") {
		t.Fatalf("expected fallback upload, got %v", fallback.keys)
	}
}

func TestMediaPut_Rejections(t *testing.T) {
	primary := &recordingBlobStore{}
	svc := NewMediaService(primary, nil)
	ctx := context.Background()

	_, err := svc.Put(ctx, "doc.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.4")))
	if !errors.Is(err, models.ErrUnsupportedMedia) {
		t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
	}

	big := bytes.Repeat([]byte{0}, MaxUploadBytes+1)
	_, err = svc.Put(ctx, "big.png", "image/png", bytes.NewReader(big))
	if !errors.Is(err, models.ErrMediaTooLarge) {
		t.Fatalf("expected ErrMediaTooLarge, got %v", err)
	}

	if len(primary.keys) != 0 {
		t.Fatalf("expected no uploads, got %v", primary.keys)
	}
}

func TestMediaKey_StableForSameContent(t *testing.T) {
	a := MediaKey([]byte("same"), "x.webp", "image/webp")
	b := MediaKey([]byte("same"), "y.webp", "image/webp")
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
}
