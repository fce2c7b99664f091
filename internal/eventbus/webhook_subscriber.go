package eventbus

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/domain"
)

// WebhookRecorder is the subset of *store.WebhookRepo the subscriber needs.
type WebhookRecorder interface {
	ForEvent(eventName string) ([]domain.WebhookConfig, error)
	RecordResult(id int64, ok bool, autoDisableAfter int) error
}

// WebhookSubscriber POSTs events to configured URLs with an HMAC-SHA256
// body signature, retrying transient failures with exponential backoff
// (2s/4s/8s) before giving up on a single delivery attempt.
type WebhookSubscriber struct {
	repo             WebhookRecorder
	client           *http.Client
	autoDisableAfter int
	log              zerolog.Logger
}

func NewWebhookSubscriber(repo WebhookRecorder, client *http.Client, autoDisableAfter int, log zerolog.Logger) *WebhookSubscriber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if autoDisableAfter <= 0 {
		autoDisableAfter = 10
	}
	return &WebhookSubscriber{repo: repo, client: client, autoDisableAfter: autoDisableAfter, log: log.With().Str("component", "webhook_subscriber").Logger()}
}

func (w *WebhookSubscriber) Name() string { return "webhook" }

func (w *WebhookSubscriber) Handle(evt Event) {
	hooks, err := w.repo.ForEvent(evt.Name)
	if err != nil {
		w.log.Error().Err(err).Str("event", evt.Name).Msg("failed to load webhooks")
		return
	}
	body, err := json.Marshal(map[string]any{
		"event":      evt.Name,
		"payload":    evt.Payload,
		"emitted_at": evt.EmittedAt,
	})
	if err != nil {
		w.log.Error().Err(err).Msg("failed to marshal webhook body")
		return
	}
	for _, hook := range hooks {
		w.deliver(hook, body)
	}
}

func (w *WebhookSubscriber) deliver(hook domain.WebhookConfig, body []byte) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.Multiplier = 2
	maxRetries := hook.RetryCount
	if maxRetries <= 0 {
		maxRetries = 3
	}
	bounded := backoff.WithMaxRetries(policy, uint64(maxRetries))

	var lastErr error
	attempt := func() error {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, hook.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if hook.Secret != "" {
			req.Header.Set("X-Sublarr-Signature", signBody(hook.Secret, body))
		}
		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = errStatus(resp.StatusCode)
			return lastErr
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(errStatus(resp.StatusCode))
		}
		return nil
	}

	ok := backoff.Retry(attempt, bounded) == nil
	if err := w.repo.RecordResult(hook.ID, ok, w.autoDisableAfter); err != nil {
		w.log.Error().Err(err).Int64("webhook_id", hook.ID).Msg("failed to record webhook result")
	}
	if !ok {
		w.log.Warn().Err(lastErr).Str("url", hook.URL).Msg("webhook delivery exhausted retries")
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type statusError int

func (e statusError) Error() string { return http.StatusText(int(e)) }

func errStatus(code int) error { return statusError(code) }
