package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"caixa_scrooper/config"
	"caixa_scrooper/httputil"
	"caixa_scrooper/models"
)

// FirecrawlFetcher renders pages through the Firecrawl scrape API. One
// limiter is shared by every request from the fetcher.
type FirecrawlFetcher struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewFirecrawlFetcher(cfg config.FirecrawlConfig, client *http.Client) *FirecrawlFetcher {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	if client == nil {
		client = httputil.NewClients().Render
	}
	return &FirecrawlFetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []Format `json:"formats"`
	WaitFor         int      `json:"waitFor,omitempty"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		HTML       string `json:"html"`
		Markdown   string `json:"markdown"`
		Screenshot string `json:"screenshot"`
	} `json:"data"`
}

func (f *FirecrawlFetcher) Fetch(ctx context.Context, req FetchRequest) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", models.ErrFetchFailed, err)
	}

	formats := req.Formats
	if len(formats) == 0 {
		formats = []Format{FormatHTML}
	}
	body, err := json.Marshal(firecrawlRequest{
		URL:             req.URL,
		Formats:         formats,
		WaitFor:         req.WaitFor,
		OnlyMainContent: req.OnlyMainContent,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", f.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: firecrawl error %d: %s", models.ErrFetchFailed, resp.StatusCode, string(respBody))
	}

	var result firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decode firecrawl reply: %w", models.ErrFetchFailed, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: firecrawl: %s", models.ErrFetchFailed, result.Error)
	}

	return &Page{
		URL:        req.URL,
		HTML:       result.Data.HTML,
		Markdown:   result.Data.Markdown,
		Screenshot: result.Data.Screenshot,
	}, nil
}
