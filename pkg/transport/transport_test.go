package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/relay/pkg/types"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	return tgbotapi.Message{MessageID: 42}, nil
}

func TestChatTransport_Deliver(t *testing.T) {
	bot := &fakeBot{}
	tr := NewChatTransportWithBot(bot)

	res := tr.Deliver(context.Background(), types.ChatRecipient(1001), Rendered{
		Body:         "*hello*",
		ParseMode:    "Markdown",
		FromTemplate: true,
	})

	assert.Equal(t, types.MessageSent, res.Status)
	assert.Equal(t, "42", res.Meta["message_id"])

	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(1001), msg.ChatID)
	assert.Equal(t, "*hello*", msg.Text)
	assert.Equal(t, "Markdown", msg.ParseMode)
}

func TestChatTransport_NoParseModeWithoutTemplate(t *testing.T) {
	bot := &fakeBot{}
	tr := NewChatTransportWithBot(bot)

	tr.Deliver(context.Background(), types.ChatRecipient(1), Rendered{
		Body:      "raw *text*",
		ParseMode: "Markdown",
	})

	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Empty(t, msg.ParseMode)
}

func TestChatTransport_SendError(t *testing.T) {
	bot := &fakeBot{err: errors.New("bot down")}
	tr := NewChatTransportWithBot(bot)

	res := tr.Deliver(context.Background(), types.ChatRecipient(1), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "bot down")
}

func TestChatTransport_CancelledContext(t *testing.T) {
	bot := &fakeBot{}
	tr := NewChatTransportWithBot(bot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := tr.Deliver(ctx, types.ChatRecipient(1), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Empty(t, bot.sent)
}

func TestEmailTransport_Deliver(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	tr := NewEmailTransport(EmailConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "relay@example.com",
	})
	tr.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	res := tr.Deliver(context.Background(), types.EmailRecipient("ada@example.com"), Rendered{
		Subject: "Backup complete",
		Body:    "All good.",
	})

	assert.Equal(t, types.MessageSent, res.Status)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "relay@example.com", gotFrom)
	assert.Equal(t, []string{"ada@example.com"}, gotTo)

	envelope := string(gotMsg)
	assert.Contains(t, envelope, "Subject: Backup complete\r\n")
	assert.Contains(t, envelope, "To: ada@example.com\r\n")
	assert.Contains(t, envelope, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(envelope, "\r\nAll good."))
}

func TestEmailTransport_HTMLBody(t *testing.T) {
	env := buildEnvelope("a@x", "b@x", "s", "<b>bold</b>")
	assert.Contains(t, string(env), "Content-Type: text/html; charset=UTF-8\r\n")
}

func TestEmailTransport_Unconfigured(t *testing.T) {
	tr := NewEmailTransport(EmailConfig{})

	res := tr.Deliver(context.Background(), types.EmailRecipient("a@x"), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "not configured")
}

func TestEmailTransport_SendError(t *testing.T) {
	tr := NewEmailTransport(EmailConfig{Host: "smtp.example.com", Port: 25, From: "a@x"})
	tr.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	res := tr.Deliver(context.Background(), types.EmailRecipient("b@x"), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "connection refused")
}

func TestWebhookTransport_Envelope(t *testing.T) {
	var gotBody []byte
	var gotSig, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	secret := []byte("s3cret")
	tr := NewWebhookTransport(0, secret)

	res := tr.Deliver(context.Background(), types.WebhookRecipient(srv.URL), Rendered{
		Subject:   "Disk alert",
		Body:      "disk at 91%",
		MessageID: "msg-1",
		UserID:    "ada",
		Hashtags:  []string{"#infra"},
	})

	require.Equal(t, types.MessageDelivered, res.Status, res.Detail)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, Sign(secret, gotBody), gotSig)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "msg-1", payload["message_id"])
	assert.Equal(t, "Disk alert", payload["subject"])
	assert.Equal(t, "disk at 91%", payload["content"])
	assert.Equal(t, "ada", payload["user_id"])
	assert.NotEmpty(t, payload["timestamp"])
}

func TestWebhookTransport_TemplateJSONPassthrough(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(0, nil)

	body := `{"text":"custom shape"}`
	res := tr.Deliver(context.Background(), types.WebhookRecipient(srv.URL), Rendered{
		Body:         body,
		FromTemplate: true,
	})

	require.Equal(t, types.MessageDelivered, res.Status)
	assert.JSONEq(t, body, string(gotBody))
}

func TestWebhookTransport_NonJSONTemplateUsesEnvelope(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(0, nil)
	tr.Deliver(context.Background(), types.WebhookRecipient(srv.URL), Rendered{
		Body:         "plain text variant",
		FromTemplate: true,
	})

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "plain text variant", payload["content"])
}

func TestWebhookTransport_NoSignatureWithoutSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
	}))
	defer srv.Close()

	tr := NewWebhookTransport(0, nil)
	tr.Deliver(context.Background(), types.WebhookRecipient(srv.URL), Rendered{Body: "x"})
	assert.Empty(t, gotSig)
}

func TestWebhookTransport_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(0, nil)
	res := tr.Deliver(context.Background(), types.WebhookRecipient(srv.URL), Rendered{Body: "x"})

	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "502")
}

func TestWebhookTransport_BreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(0, nil)
	rcpt := types.WebhookRecipient(srv.URL)

	for i := 0; i < 5; i++ {
		tr.Deliver(context.Background(), rcpt, Rendered{Body: "x"})
	}

	res := tr.Deliver(context.Background(), rcpt, Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "circuit breaker is open")
}

func TestWebhookTransport_CancelledContext(t *testing.T) {
	tr := NewWebhookTransport(0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := tr.Deliver(ctx, types.WebhookRecipient("http://127.0.0.1:1"), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Equal(t, "cancelled", res.Detail)
}

func TestSign(t *testing.T) {
	// Known vector: HMAC-SHA256("key", "payload")
	sig := Sign([]byte("key"), []byte("payload"))
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
	assert.Equal(t, sig, Sign([]byte("key"), []byte("payload")))
}

func TestSMSTransport_AlwaysFails(t *testing.T) {
	tr := NewSMSTransport()

	res := tr.Deliver(context.Background(), types.SMSRecipient("+15550100"), Rendered{Body: "x"})
	assert.Equal(t, types.MessageFailed, res.Status)
	assert.Contains(t, res.Detail, "not implemented")
}
