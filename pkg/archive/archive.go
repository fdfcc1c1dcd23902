package archive

import (
	"github.com/hearthside/relay/pkg/types"
)

// Store defines the interface for durable relay state
// This will be implemented by BoltDB-backed storage
type Store interface {
	// Events
	WriteEvent(ev *types.Event) error
	GetEvent(id string) (*types.Event, error)
	ListEvents() ([]*types.Event, error)
	ListEventsByCategory(category types.Category) ([]*types.Event, error)

	// Messages
	WriteMessage(msg *types.Message) error
	GetMessage(id string) (*types.Message, error)
	ListMessages() ([]*types.Message, error)

	// Webhook registrations
	SaveWebhook(reg *types.WebhookRegistration) error
	ListWebhooks() ([]*types.WebhookRegistration, error)
	DeleteWebhook(id string) error

	// Utility
	Close() error
}
