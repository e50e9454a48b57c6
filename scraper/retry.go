package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"caixa_scrooper/models"
)

type RetryConfig struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	IsRetryable  func(error) bool
}

// IsRetryableFetch retries fetch failures but never a cancelled context.
func IsRetryableFetch(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, models.ErrFetchFailed)
}

// Retrying wraps a Fetcher with exponential backoff.
type Retrying struct {
	next Fetcher
	cfg  RetryConfig
}

func NewRetrying(next Fetcher, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = IsRetryableFetch
	}
	return &Retrying{next: next, cfg: cfg}
}

func (r *Retrying) Fetch(ctx context.Context, req FetchRequest) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		page, err := r.next.Fetch(ctx, req)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !r.cfg.IsRetryable(err) || attempt == r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.backoff(attempt)
		log.Printf("Warning: fetch %s failed (attempt %d/%d), retrying in %s: %v",
			req.URL, attempt+1, r.cfg.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", lastErr, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (r *Retrying) backoff(attempt int) time.Duration {
	d := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(attempt))
	if d > float64(r.cfg.MaxDelay) {
		return r.cfg.MaxDelay
	}
	return time.Duration(d)
}

// Close releases the wrapped fetcher's resources when it holds any.
func (r *Retrying) Close() {
	if c, ok := r.next.(interface{ Close() }); ok {
		c.Close()
	}
}
