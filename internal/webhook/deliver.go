package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sales_crm_backend/platform/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	initialRetryDelay  = 2 * time.Second
	maxRetryDelay      = 30 * time.Second

	// SignatureHeader carries the hex HMAC-SHA256 of the request body,
	// keyed with the tenant's configured secret.
	SignatureHeader = "X-CRM-Signature"
)

// envelope is the wire format posted to the destination.
type envelope struct {
	Event   Event  `json:"event"`
	Source  string `json:"source"`
	Version string `json:"version"`
}

// Deliverer posts events to webhook destinations with bounded retries.
type Deliverer struct {
	client      *http.Client
	log         *logger.Logger
	maxAttempts int

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

// NewDeliverer creates a deliverer. timeout and maxAttempts fall back to
// defaults when zero.
func NewDeliverer(timeout time.Duration, maxAttempts int, log *logger.Logger) *Deliverer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Deliverer{
		client:      &http.Client{Timeout: timeout},
		log:         log,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// Deliver posts the event to the config's destination. It retries on any
// failure with a doubling delay, and returns the last error only after all
// attempts are exhausted. Callers absorb that error; nothing upstream of
// the delivery path ever sees it.
func (d *Deliverer) Deliver(ctx context.Context, cfg Config, event Event) error {
	body, err := json.Marshal(envelope{Event: event, Source: "sales-crm", Version: "1"})
	if err != nil {
		return fmt.Errorf("encode webhook envelope: %w", err)
	}

	started := time.Now()
	delay := initialRetryDelay
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		status, err := d.post(ctx, cfg, body)
		d.log.WebhookAttempt(event.Type, cfg.DestinationURL, attempt, status, err)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		d.sleep(delay)
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}

	d.log.WebhookExhausted(event.Type, cfg.DestinationURL, d.maxAttempts, time.Since(started))
	return lastErr
}

func (d *Deliverer) post(ctx context.Context, cfg Config, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.DestinationURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(cfg.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("destination returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the hex HMAC-SHA256 of body with the given secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
