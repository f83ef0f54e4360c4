package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/orderset/internal/content"
	"github.com/kilupskalvis/orderset/internal/models"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a Client with automatic retry on transient errors.
// Only idempotent calls are retried.
type RetryClient struct {
	inner  Client
	config *RetryConfig
}

// NewRetryClient creates a RetryClient that wraps the given Client.
func NewRetryClient(inner Client, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500 || ae.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			if err := sleep(ctx, rc.backoff(attempt)); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

func (rc *RetryClient) ListCollections(ctx context.Context) (infos []CollectionInfo, err error) {
	err = rc.retry(ctx, "list collections", func() error {
		infos, err = rc.inner.ListCollections(ctx)
		return err
	})
	return
}

func (rc *RetryClient) List(ctx context.Context, name string, all bool) (entries []content.Entry, err error) {
	err = rc.retry(ctx, "list", func() error {
		entries, err = rc.inner.List(ctx, name, all)
		return err
	})
	return
}

func (rc *RetryClient) Get(ctx context.Context, name string, id int64) (entry content.Entry, err error) {
	err = rc.retry(ctx, "get", func() error {
		entry, err = rc.inner.Get(ctx, name, id)
		return err
	})
	return
}

func (rc *RetryClient) Create(ctx context.Context, name string, body any) (content.Entry, error) {
	// Inserts are not idempotent; a retried create could append twice.
	return rc.inner.Create(ctx, name, body)
}

func (rc *RetryClient) Update(ctx context.Context, name string, id int64, body any) (content.Entry, error) {
	return rc.inner.Update(ctx, name, id, body)
}

func (rc *RetryClient) Delete(ctx context.Context, name string, id int64) error {
	return rc.inner.Delete(ctx, name, id)
}

// Reorder is retried: replaying the same sequence yields the same orders.
func (rc *RetryClient) Reorder(ctx context.Context, name string, ids []int64) error {
	return rc.retry(ctx, "reorder", func() error {
		return rc.inner.Reorder(ctx, name, ids)
	})
}

func (rc *RetryClient) Normalize(ctx context.Context, name string) error {
	return rc.retry(ctx, "normalize", func() error {
		return rc.inner.Normalize(ctx, name)
	})
}

func (rc *RetryClient) GetDocument(ctx context.Context, key string) (doc *models.Document, err error) {
	err = rc.retry(ctx, "get document", func() error {
		doc, err = rc.inner.GetDocument(ctx, key)
		return err
	})
	return
}

func (rc *RetryClient) PutDocument(ctx context.Context, key string, body json.RawMessage) (doc *models.Document, err error) {
	err = rc.retry(ctx, "put document", func() error {
		doc, err = rc.inner.PutDocument(ctx, key, body)
		return err
	})
	return
}
