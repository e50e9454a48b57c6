package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"caixa_scrooper/config"
	"caixa_scrooper/extract"
	"caixa_scrooper/identity"
	"caixa_scrooper/models"
	"caixa_scrooper/scraper"
)

const (
	urlImportTimeout = 45 * time.Second
	urlRenderWait    = 2000
	minContentLen    = 100
)

// URLAdapter imports a single listing from any page the fetcher can render.
type URLAdapter struct {
	fetcher scraper.Fetcher
	links   *scraper.LinkExtractor
	timeout time.Duration
}

func NewURLAdapter(fetcher scraper.Fetcher, src *config.SourceConfig) (*URLAdapter, error) {
	links, err := scraper.NewLinkExtractor(src)
	if err != nil {
		return nil, err
	}
	return &URLAdapter{fetcher: fetcher, links: links, timeout: urlImportTimeout}, nil
}

// NormalizeInputURL adds https:// when the scheme is missing and rejects
// anything without a host.
func NormalizeInputURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("invalid URL %q", raw)
	}
	return u.String(), nil
}

func (a *URLAdapter) Import(ctx context.Context, rawURL string) (*Result, error) {
	pageURL, err := NormalizeInputURL(rawURL)
	if err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	page, err := a.fetcher.Fetch(fctx, scraper.FetchRequest{
		URL:             pageURL,
		Formats:         []scraper.Format{scraper.FormatMarkdown, scraper.FormatHTML},
		WaitFor:         urlRenderWait,
		OnlyMainContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", pageURL, err)
	}

	hints := extract.Hints{SourceURL: pageURL}
	if id, ok := a.links.ExternalID(pageURL); ok {
		hints.ExternalID = id
	} else {
		hints.ExternalID = identity.ExternalIDFromURL(pageURL)
	}
	hints.City, hints.State = a.links.Location(pageURL)

	markdown := strings.TrimSpace(page.Markdown)
	html := strings.TrimSpace(page.HTML)

	var draft *models.PropertyDraft
	var extractErr error
	var kind string
	switch {
	case len(markdown) >= minContentLen:
		kind = "markdown"
		draft, extractErr = extract.Markdown(markdown, hints)
	case len(html) >= minContentLen:
		kind = "html"
		draft, extractErr = extract.HTML(html, hints)
		if draft == nil && extractErr != nil {
			return nil, fmt.Errorf("import %s: %w", pageURL, extractErr)
		}
	default:
		return nil, fmt.Errorf("import %s: %w: %d characters", pageURL, models.ErrInsufficientContent, max(len(markdown), len(html)))
	}

	raw, _ := json.Marshal(map[string]string{
		"source": "url",
		"url":    pageURL,
		"format": kind,
	})
	return &Result{Draft: draft, Raw: raw, Screenshot: page.Screenshot}, extractErr
}
