package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"caixa_scrooper/config"
)

func TestSupabaseBlobStore_Put(t *testing.T) {
	var gotPath, gotKey, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewSupabaseBlobStore(config.SupabaseConfig{URL: srv.URL, ServiceKey: "secret"}, srv.Client())
	url, err := store.Put(context.Background(), "properties/ab/abc.jpg", strings.NewReader("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if gotPath != "/storage/v1/object/property-images/properties/ab/abc.jpg" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotKey != "secret" || gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth headers %q %q", gotKey, gotAuth)
	}
	if gotType != "image/jpeg" || gotBody != "img" {
		t.Fatalf("unexpected upload %q %q", gotType, gotBody)
	}
	if url != srv.URL+"/storage/v1/object/public/property-images/properties/ab/abc.jpg" {
		t.Fatalf("unexpected public url %s", url)
	}
}

func TestSupabaseBlobStore_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer srv.Close()

	store := NewSupabaseBlobStore(config.SupabaseConfig{URL: srv.URL, ServiceKey: "k", Bucket: "b"}, srv.Client())
	if _, err := store.Put(context.Background(), "k.jpg", strings.NewReader("x"), "image/jpeg"); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestLocalBlobStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalBlobStore(dir)

	ref, err := store.Put(context.Background(), "properties/ab/abc.png", strings.NewReader("png"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasPrefix(ref, "file://") {
		t.Fatalf("expected file reference, got %s", ref)
	}
	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestS3PublicURL(t *testing.T) {
	tests := []struct {
		cfg  config.S3Config
		want string
	}{
		{config.S3Config{Bucket: "imgs", Region: "sa-east-1"}, "https://imgs.s3.sa-east-1.amazonaws.com/k.jpg"},
		{config.S3Config{Bucket: "imgs", Endpoint: "https://nyc3.digitaloceanspaces.com"}, "https://imgs.nyc3.digitaloceanspaces.com/k.jpg"},
		{config.S3Config{Bucket: "imgs", Endpoint: "http://localhost:9000/"}, "http://localhost:9000/imgs/k.jpg"},
	}
	for _, tt := range tests {
		if got := S3PublicURL(tt.cfg, "k.jpg"); got != tt.want {
			t.Fatalf("expected %s, got %s", tt.want, got)
		}
	}
}
