package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strings"

	"caixa_scrooper/models"
	"caixa_scrooper/storage"
)

// MaxUploadBytes caps a single uploaded image.
const MaxUploadBytes = 5 << 20

// MediaService handles image uploads for manually entered properties
type MediaService struct {
	primary  storage.BlobStore
	fallback storage.BlobStore
}

// NewMediaService creates a new MediaService. primary may be nil, in which
// case every upload goes to the fallback.
func NewMediaService(primary, fallback storage.BlobStore) *MediaService {
	return &MediaService{primary: primary, fallback: fallback}
}

// Put stores an image under a content-addressed key and returns its URL.
func (s *MediaService) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return "", fmt.Errorf("%w: over %d bytes", models.ErrMediaTooLarge, MaxUploadBytes)
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedMedia, contentType)
	}

	key := MediaKey(data, name, mediaType)

	if s.primary != nil {
		url, err := s.primary.Put(ctx, key, bytes.NewReader(data), mediaType)
		if err == nil {
			return url, nil
		}
		log.Printf("Warning: primary blob store failed for %s, using local fallback: %v", key, err)
	} else {
		log.Printf("Warning: no blob store configured, storing %s locally", key)
	}

	if s.fallback == nil {
		return "", fmt.Errorf("no blob store available for %s", key)
	}
	return s.fallback.Put(ctx, key, bytes.NewReader(data), mediaType)
}

// MediaKey returns properties/<sha[:2]>/<sha>.<ext>. The extension comes from
// the file name, else from the media type.
func MediaKey(data []byte, name, mediaType string) string {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	return fmt.Sprintf("properties/%s/%s.%s", hash[:2], hash, extension(name, mediaType))
}

func extension(name, mediaType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), "."); ext != "" {
		return ext
	}
	switch mediaType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "bin"
}
