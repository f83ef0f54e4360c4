package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Webhook event names.
const (
	EventCreate    = "create"
	EventUpdate    = "update"
	EventDelete    = "delete"
	EventReorder   = "reorder"
	EventNormalize = "normalize"
	EventDocument  = "document"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body, prefixed "sha256=",
// when a webhook secret is configured.
const SignatureHeader = "X-Orderset-Signature"

// WebhookEvent represents the payload sent to webhook URLs.
type WebhookEvent struct {
	Event      string `json:"event"`
	Collection string `json:"collection,omitempty"`
	ID         int64  `json:"id,omitempty"`
	Key        string `json:"key,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// WebhookConfig holds the configured webhook URLs and optional signing secret.
type WebhookConfig struct {
	URLs   []string
	Secret string
}

// WebhookNotifier sends HTTP POST notifications to configured webhook URLs.
type WebhookNotifier struct {
	config  *WebhookConfig
	client  *http.Client
	logger  *slog.Logger
	backoff time.Duration
	wg      sync.WaitGroup
}

// NewWebhookNotifier creates a webhook notifier. Returns nil if no URLs are configured.
func NewWebhookNotifier(cfg *WebhookConfig, logger *slog.Logger) *WebhookNotifier {
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		backoff: time.Second,
	}
}

// Notify sends event to all configured webhook URLs.
// Runs asynchronously; does not block the caller.
func (wn *WebhookNotifier) Notify(event WebhookEvent) {
	if wn == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	wn.wg.Add(1)
	go func() {
		defer wn.wg.Done()
		wn.send(&event)
	}()
}

// Wait blocks until every pending delivery has finished.
func (wn *WebhookNotifier) Wait() {
	if wn == nil {
		return
	}
	wn.wg.Wait()
}

// send delivers the webhook event to all configured URLs.
func (wn *WebhookNotifier) send(event *WebhookEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		wn.logger.Error("webhook: marshal event", "error", err)
		return
	}

	var signature string
	if wn.config.Secret != "" {
		mac := hmac.New(sha256.New, []byte(wn.config.Secret))
		mac.Write(data)
		signature = "sha256=" + hex.EncodeToString(mac.Sum(nil))
	}

	for _, url := range wn.config.URLs {
		if err := wn.post(url, data, signature); err != nil {
			wn.logger.Warn("webhook: delivery failed", "url", url, "event", event.Event, "error", err)
		} else {
			wn.logger.Debug("webhook: delivered", "url", url, "event", event.Event)
		}
	}
}

// post sends a single webhook POST with retry (up to 2 retries).
func (wn *WebhookNotifier) post(url string, data []byte, signature string) error {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * wn.backoff)
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "orderset/1.0")
		if signature != "" {
			req.Header.Set(SignatureHeader, signature)
		}

		resp, err := wn.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			return lastErr // don't retry 4xx
		}
	}

	return lastErr
}

// VerifySignature reports whether signature is the SignatureHeader value for
// body under secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
