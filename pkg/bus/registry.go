package bus

import (
	"context"
	"sync"

	"github.com/hearthside/relay/pkg/types"
)

// PersonalLogHandler is the registration name of the personal-log
// forwarder. Events flagged personal_log_only run this handler and skip
// all others.
const PersonalLogHandler = "personal-log"

// HandlerFunc is an event subscriber callback. Handlers may perform I/O
// and must honor ctx cancellation. A handler must not synchronously
// republish the event it is handling (by id); publishing new events is
// fine.
type HandlerFunc func(ctx context.Context, ev *types.Event) error

// Registration pairs a handler with its identity
type Registration struct {
	Name string
	Fn   HandlerFunc
}

// Registry maps event categories to ordered handler lists. Registration
// is idempotent on (category, name); invocation order is registration
// order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[types.Category][]Registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[types.Category][]Registration),
	}
}

// Register adds a handler for a category. Registering the same name
// twice replaces the handler in place, keeping its original position.
func (r *Registry) Register(category types.Category, name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[category]
	for i, reg := range regs {
		if reg.Name == name {
			regs[i].Fn = fn
			return
		}
	}
	r.handlers[category] = append(regs, Registration{Name: name, Fn: fn})
}

// RegisterAll adds a handler for every known category
func (r *Registry) RegisterAll(name string, fn HandlerFunc) {
	for _, category := range types.Categories {
		r.Register(category, name, fn)
	}
}

// HandlersFor returns a consistent snapshot of the handlers registered
// for a category
func (r *Registry) HandlersFor(category types.Category) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := r.handlers[category]
	out := make([]Registration, len(regs))
	copy(out, regs)
	return out
}

// Count returns the number of handlers registered for a category
func (r *Registry) Count(category types.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[category])
}
