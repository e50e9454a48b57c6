package scraper

import (
	"context"
	"fmt"

	"caixa_scrooper/config"
	"caixa_scrooper/httputil"
)

type Format string

const (
	FormatHTML       Format = "html"
	FormatMarkdown   Format = "markdown"
	FormatScreenshot Format = "screenshot"
)

type FetchRequest struct {
	URL             string
	Formats         []Format
	WaitFor         int // milliseconds
	OnlyMainContent bool
}

// Page is a rendered page. Fields for formats that were not requested, or
// that the backend could not produce, are empty.
type Page struct {
	URL        string
	HTML       string
	Markdown   string
	Screenshot string
}

// Fetcher renders a URL. Implementations honour ctx deadlines and wrap
// transport and upstream failures in models.ErrFetchFailed.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*Page, error)
}

// NewFetcher builds the configured fetcher, wrapped in the retry decorator
// when more than one attempt is configured.
func NewFetcher(cfg *config.Config, clients *httputil.Clients) (Fetcher, error) {
	var f Fetcher
	switch cfg.Fetcher {
	case "firecrawl":
		f = NewFirecrawlFetcher(cfg.Firecrawl, clients.Render)
	case "browser":
		f = NewBrowserFetcher()
	default:
		return nil, fmt.Errorf("unknown fetcher: %s", cfg.Fetcher)
	}

	if cfg.Retry.MaxAttempts > 1 {
		f = NewRetrying(f, RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
		})
	}
	return f, nil
}

func wants(req FetchRequest, f Format) bool {
	if len(req.Formats) == 0 {
		return f == FormatHTML
	}
	for _, have := range req.Formats {
		if have == f {
			return true
		}
	}
	return false
}
