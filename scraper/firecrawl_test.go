package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"caixa_scrooper/config"
	"caixa_scrooper/models"
)

func TestFirecrawlFetcher_RequestShape(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/scrape" {
			t.Errorf("expected POST /v1/scrape, got %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer fc-test" {
			t.Errorf("expected bearer key, got %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"html":"<html>ok</html>","markdown":"# ok"}}`))
	}))
	defer server.Close()

	f := NewFirecrawlFetcher(config.FirecrawlConfig{APIKey: "fc-test", BaseURL: server.URL + "/", RPS: 50}, server.Client())
	page, err := f.Fetch(context.Background(), FetchRequest{
		URL:             "https://www.leilaoimovel.com.br/imoveis/caixa",
		Formats:         []Format{FormatMarkdown, FormatHTML},
		WaitFor:         2000,
		OnlyMainContent: true,
	})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if page.HTML != "<html>ok</html>" || page.Markdown != "# ok" {
		t.Fatalf("unexpected page: %+v", page)
	}

	if got["url"] != "https://www.leilaoimovel.com.br/imoveis/caixa" {
		t.Fatalf("expected url in body, got %v", got["url"])
	}
	if got["waitFor"] != float64(2000) || got["onlyMainContent"] != true {
		t.Fatalf("expected waitFor 2000 and onlyMainContent, got %v / %v", got["waitFor"], got["onlyMainContent"])
	}
	formats, _ := got["formats"].([]any)
	if len(formats) != 2 || formats[0] != "markdown" || formats[1] != "html" {
		t.Fatalf("expected formats [markdown html], got %v", got["formats"])
	}
}

func TestFirecrawlFetcher_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"success":false}`},
		{"unsuccessful reply", http.StatusOK, `{"success":false,"error":"blocked"}`},
		{"garbage", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f := NewFirecrawlFetcher(config.FirecrawlConfig{APIKey: "k", BaseURL: server.URL, RPS: 50}, server.Client())
			_, err := f.Fetch(context.Background(), FetchRequest{URL: "https://example.com"})
			if !errors.Is(err, models.ErrFetchFailed) {
				t.Fatalf("expected ErrFetchFailed, got %v", err)
			}
		})
	}
}

func TestFirecrawlFetcher_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"html":"x"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFirecrawlFetcher(config.FirecrawlConfig{APIKey: "k", BaseURL: server.URL, RPS: 50}, server.Client())
	if _, err := f.Fetch(ctx, FetchRequest{URL: "https://example.com"}); !errors.Is(err, models.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed for a cancelled request, got %v", err)
	}
}
