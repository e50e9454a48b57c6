package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"caixa_scrooper/httputil"
	"caixa_scrooper/models"
)

const defaultBrowserTimeout = 45 * time.Second

// BrowserFetcher renders pages in a local headless Chromium. The browser is
// started on first use and shared by every fetch until Close.
type BrowserFetcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	mu      sync.Mutex
}

func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, req FetchRequest) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFetchFailed, err)
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, fmt.Errorf("%w: start browser: %w", models.ErrFetchFailed, err)
	}

	timeout := defaultBrowserTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	page, err := f.browser.NewPage(playwright.BrowserNewPageOptions{
		UserAgent: playwright.String(httputil.UserAgent),
		Locale:    playwright.String("pt-BR"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: new page: %w", models.ErrFetchFailed, err)
	}
	defer page.Close()

	// playwright calls do not take a context, so a cancelled run closes the
	// page to unblock them.
	stop := context.AfterFunc(ctx, func() { page.Close() })
	defer stop()

	if _, err := page.Goto(req.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, fmt.Errorf("%w: goto %s: %w", models.ErrFetchFailed, req.URL, err)
	}

	if req.WaitFor > 0 {
		page.WaitForTimeout(float64(req.WaitFor))
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: read content: %w", models.ErrFetchFailed, err)
	}

	result := &Page{URL: req.URL, HTML: content}
	if wants(req, FormatScreenshot) {
		shot, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
		if err != nil {
			log.Printf("Warning: screenshot of %s failed: %v", req.URL, err)
		} else {
			result.Screenshot = base64.StdEncoding.EncodeToString(shot)
		}
	}
	return result, nil
}

func (f *BrowserFetcher) ensureBrowser() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		f.pw = nil
		return fmt.Errorf("could not launch browser: %w", err)
	}

	return nil
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		f.browser.Close()
		f.browser = nil
	}
	if f.pw != nil {
		f.pw.Stop()
		f.pw = nil
	}
}
