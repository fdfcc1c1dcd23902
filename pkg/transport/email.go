package transport

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/types"
)

// EmailConfig holds SMTP session parameters
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc matches smtp.SendMail; tests substitute a fake
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailTransport constructs an RFC-822 envelope and hands it to the
// upstream transfer agent. The session is per-message.
type EmailTransport struct {
	cfg    EmailConfig
	send   sendFunc
	logger zerolog.Logger
}

// NewEmailTransport creates an SMTP-backed email adapter
func NewEmailTransport(cfg EmailConfig) *EmailTransport {
	return &EmailTransport{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: log.WithTransport("email"),
	}
}

// Kind implements Transport
func (t *EmailTransport) Kind() types.TransportKind {
	return types.TransportEmail
}

// Deliver opens a session, authenticates, sends, and closes
func (t *EmailTransport) Deliver(ctx context.Context, rcpt types.Recipient, content Rendered) Result {
	if ctx.Err() != nil {
		return cancelled()
	}
	if t.cfg.Host == "" {
		return failed("email transport not configured")
	}

	envelope := buildEnvelope(t.cfg.From, rcpt.Email, content.Subject, content.Body)

	var auth smtp.Auth
	if t.cfg.Username != "" {
		auth = smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	if err := t.send(addr, auth, t.cfg.From, []string{rcpt.Email}, envelope); err != nil {
		t.logger.Error().Err(err).Str("to", rcpt.Email).Msg("email delivery failed")
		return failed(fmt.Sprintf("smtp send: %v", err))
	}

	return Result{Status: types.MessageSent}
}

// buildEnvelope assembles the RFC-822 message. The body is sent as HTML
// when it contains markup, text/plain otherwise.
func buildEnvelope(from, to, subject, body string) []byte {
	contentType := "text/plain; charset=UTF-8"
	if strings.Contains(body, "<") {
		contentType = "text/html; charset=UTF-8"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: %s\r\n", contentType)
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}
