package transport

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/types"
)

// SMSTransport is a placeholder adapter. No carrier gateway is wired
// yet, so every delivery reports failure without side effects.
//
// TODO: wire a carrier gateway once one is selected.
type SMSTransport struct {
	logger zerolog.Logger
}

// NewSMSTransport creates the placeholder SMS adapter
func NewSMSTransport() *SMSTransport {
	return &SMSTransport{logger: log.WithTransport("sms")}
}

// Kind implements Transport
func (t *SMSTransport) Kind() types.TransportKind {
	return types.TransportSMS
}

// Deliver always fails until a gateway is configured
func (t *SMSTransport) Deliver(ctx context.Context, rcpt types.Recipient, content Rendered) Result {
	t.logger.Warn().Str("phone", rcpt.Phone).Msg("sms transport not implemented")
	return failed("sms transport not implemented")
}
