package transport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/types"
)

// DefaultWebhookTimeout bounds the outbound POST
const DefaultWebhookTimeout = 30 * time.Second

// webhookEnvelope is the default JSON object posted to webhook
// recipients
type webhookEnvelope struct {
	MessageID     string   `json:"message_id"`
	Subject       string   `json:"subject"`
	Content       string   `json:"content"`
	Timestamp     string   `json:"timestamp"`
	UserID        string   `json:"user_id"`
	ContextLabels []string `json:"context_labels"`
}

// WebhookTransport POSTs JSON to HTTP endpoints, signing the body when a
// secret is configured. A circuit breaker sheds load from endpoints that
// fail repeatedly.
type WebhookTransport struct {
	client  *http.Client
	secret  []byte
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewWebhookTransport creates the outbound webhook adapter. A zero
// timeout selects the 30s default; an empty secret disables signing.
func NewWebhookTransport(timeout time.Duration, secret []byte) *WebhookTransport {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &WebhookTransport{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "webhook-out",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		logger: log.WithTransport("webhook"),
	}
}

// Kind implements Transport
func (t *WebhookTransport) Kind() types.TransportKind {
	return types.TransportWebhook
}

// Deliver posts the payload. When the body came from a webhook template
// variant and is itself valid JSON it is posted as-is; otherwise the
// default message envelope is used.
func (t *WebhookTransport) Deliver(ctx context.Context, rcpt types.Recipient, content Rendered) Result {
	if ctx.Err() != nil {
		return cancelled()
	}

	var payload []byte
	if content.FromTemplate && json.Valid([]byte(content.Body)) {
		payload = []byte(content.Body)
	} else {
		var err error
		payload, err = json.Marshal(webhookEnvelope{
			MessageID:     content.MessageID,
			Subject:       content.Subject,
			Content:       content.Body,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			UserID:        content.UserID,
			ContextLabels: content.Hashtags,
		})
		if err != nil {
			return failed(fmt.Sprintf("encode payload: %v", err))
		}
	}

	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.post(ctx, rcpt.URL, payload)
	})
	if err != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		t.logger.Error().Err(err).Str("url", rcpt.URL).Msg("webhook delivery failed")
		return failed(fmt.Sprintf("webhook post: %v", err))
	}

	return Result{Status: types.MessageDelivered}
}

func (t *WebhookTransport) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if len(t.secret) > 0 {
		req.Header.Set("X-Signature", Sign(t.secret, payload))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the signature header value for a payload:
// sha256=<lowercase hex of HMAC-SHA256>
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
