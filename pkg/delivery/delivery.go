package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/bus"
	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/template"
	"github.com/hearthside/relay/pkg/transport"
	"github.com/hearthside/relay/pkg/types"
)

// ErrNoRecipients is returned for a message with an empty recipient list
var ErrNoRecipients = fmt.Errorf("message has no recipients")

// Publisher accepts audit events emitted after a delivery attempt
type Publisher interface {
	Publish(ev *types.Event) bus.PublishResult
}

// Outcome records one recipient's delivery result
type Outcome struct {
	Recipient types.Recipient
	Status    types.MessageStatus
	Detail    string
}

// Pipeline renders a message per transport and fans it out to its
// recipients in order. Recipients are independent: one failure does not
// stop the rest.
type Pipeline struct {
	engine     *template.Engine
	transports map[types.TransportKind]transport.Transport
	audit      Publisher
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline over the given adapters. The audit
// publisher may be nil to disable communication logging.
func NewPipeline(engine *template.Engine, audit Publisher, adapters ...transport.Transport) *Pipeline {
	m := make(map[types.TransportKind]transport.Transport, len(adapters))
	for _, a := range adapters {
		m[a.Kind()] = a
	}
	return &Pipeline{
		engine:     engine,
		transports: m,
		audit:      audit,
		logger:     log.WithComponent("delivery"),
	}
}

// Send delivers the message to every recipient. The message status and
// DeliveredAt are updated in place: sent if at least one recipient
// accepted the message, failed otherwise.
func (p *Pipeline) Send(ctx context.Context, msg *types.Message) ([]Outcome, error) {
	if len(msg.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	outcomes := make([]Outcome, 0, len(msg.Recipients))
	delivered := false

	for _, rcpt := range msg.Recipients {
		res := p.deliverOne(ctx, msg, rcpt)
		outcomes = append(outcomes, Outcome{Recipient: rcpt, Status: res.Status, Detail: res.Detail})
		if res.Status == types.MessageSent || res.Status == types.MessageDelivered {
			delivered = true
		}
	}

	if delivered {
		msg.Status = types.MessageSent
		now := time.Now().UTC()
		msg.DeliveredAt = &now
		metrics.IncMessagesSent()
	} else {
		msg.Status = types.MessageFailed
		metrics.IncMessagesFailed()
	}

	p.auditDelivery(msg, outcomes)
	return outcomes, nil
}

func (p *Pipeline) deliverOne(ctx context.Context, msg *types.Message, rcpt types.Recipient) transport.Result {
	if err := rcpt.Validate(); err != nil {
		return transport.Result{Status: types.MessageFailed, Detail: err.Error()}
	}

	adapter, ok := p.transports[rcpt.Transport]
	if !ok {
		return transport.Result{
			Status: types.MessageFailed,
			Detail: fmt.Sprintf("no adapter for transport %q", rcpt.Transport),
		}
	}

	body, fromTemplate, err := p.engine.Render(msg.TemplateID, rcpt.Transport, msg.TemplateVars, msg.Content)
	if err != nil {
		return transport.Result{Status: types.MessageFailed, Detail: err.Error()}
	}

	content := transport.Rendered{
		Subject:      template.Substitute(msg.Subject, msg.TemplateVars),
		Body:         body,
		ParseMode:    msg.ParseMode,
		MessageID:    msg.ID,
		UserID:       msg.UserID,
		Hashtags:     msg.Hashtags,
		FromTemplate: fromTemplate,
	}

	res := adapter.Deliver(ctx, rcpt, content)
	if res.Status == types.MessageFailed {
		p.logger.Warn().
			Str("message_id", msg.ID).
			Str("transport", string(rcpt.Transport)).
			Str("detail", res.Detail).
			Msg("recipient delivery failed")
	}
	return res
}

// auditDelivery publishes a communication event describing the attempt.
// The event carries recipients, transports and outcomes only, never the
// message content or template variables.
func (p *Pipeline) auditDelivery(msg *types.Message, outcomes []Outcome) {
	if p.audit == nil || !msg.LogToPersonalServer || msg.UserID == "" {
		return
	}

	results := make([]map[string]string, len(outcomes))
	for i, o := range outcomes {
		results[i] = map[string]string{
			"transport": string(o.Recipient.Transport),
			"recipient": o.Recipient.Address(),
			"status":    string(o.Status),
		}
	}

	ev := types.NewEvent(types.CategoryCommunication, "delivery", types.PriorityLow,
		fmt.Sprintf("message %s: %s", msg.Status, msg.ID))
	ev.UserID = msg.UserID
	ev.TopicHint = msg.TopicHint
	ev.PersonalLogOnly = true
	ev.Data = map[string]interface{}{
		"message_id": msg.ID,
		"recipients": len(outcomes),
		"results":    results,
	}
	p.audit.Publish(ev)
}
