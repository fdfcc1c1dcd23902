package transport

import (
	"context"

	"github.com/hearthside/relay/pkg/types"
)

// Rendered is the content handed to an adapter after template
// resolution. MessageID, UserID and Hashtags feed the webhook-out
// envelope; ParseMode applies to chat only.
type Rendered struct {
	Subject      string
	Body         string
	ParseMode    string
	MessageID    string
	UserID       string
	Hashtags     []string
	FromTemplate bool
}

// Result is the per-recipient delivery outcome
type Result struct {
	Status types.MessageStatus
	Detail string
	Meta   map[string]string
}

// Transport is a uniform send interface over a delivery backend.
// Implementations must be safe for concurrent use.
type Transport interface {
	Kind() types.TransportKind
	Deliver(ctx context.Context, rcpt types.Recipient, content Rendered) Result
}

// failed builds a failure result with an explanatory string
func failed(detail string) Result {
	return Result{Status: types.MessageFailed, Detail: detail}
}

// cancelled is the uniform outcome for a delivery aborted by context
func cancelled() Result {
	return Result{Status: types.MessageFailed, Detail: "cancelled"}
}
