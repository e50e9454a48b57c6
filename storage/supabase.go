package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"caixa_scrooper/config"
)

// SupabaseBlobStore writes objects through the Supabase Storage REST API.
type SupabaseBlobStore struct {
	url        string
	serviceKey string
	bucket     string
	client     *http.Client
}

func NewSupabaseBlobStore(cfg config.SupabaseConfig, client *http.Client) *SupabaseBlobStore {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "property-images"
	}
	return &SupabaseBlobStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		bucket:     bucket,
		client:     client,
	}
}

func (s *SupabaseBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("supabase error %d: %s", resp.StatusCode, string(body))
	}

	return s.PublicURL(key), nil
}

func (s *SupabaseBlobStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.bucket, key)
}
