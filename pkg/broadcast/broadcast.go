package broadcast

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/types"
)

// Subscriber is a channel that receives broadcast events
type Subscriber chan *types.Event

// Options selects which event classes are fanned out
type Options struct {
	SystemEvents bool
	UserEvents   bool
}

// Hub fans events out to in-process subscribers and connected websocket
// clients. Slow consumers are skipped, never blocked on.
type Hub struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *types.Event
	stopCh      chan struct{}
	stopOnce    sync.Once
	opts        Options
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewHub creates a broadcast hub
func NewHub(opts Options) *Hub {
	return &Hub{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *types.Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
		opts:        opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.WithComponent("broadcast"),
	}
}

// Start begins the hub's distribution loop
func (h *Hub) Start() {
	go h.run()
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Subscribe creates a new subscription and returns a channel
func (h *Hub) Subscribe() Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	h.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[sub] {
		delete(h.subscribers, sub)
		close(sub)
	}
}

// Handle is the bus subscriber feeding the hub. Events excluded by the
// options are ignored; personal-log-only events never reach the hub by
// construction.
func (h *Hub) Handle(ctx context.Context, ev *types.Event) error {
	if !h.wants(ev) {
		return nil
	}

	select {
	case h.eventCh <- ev:
	default:
		// Hub buffer full, drop rather than stall dispatch
	}
	return nil
}

func (h *Hub) wants(ev *types.Event) bool {
	if ev.UserID != "" {
		return h.opts.UserEvents
	}
	return h.opts.SystemEvents
}

func (h *Hub) run() {
	for {
		select {
		case ev := <-h.eventCh:
			h.broadcast(ev)
		case <-h.stopCh:
			return
		}
	}
}

func (h *Hub) broadcast(ev *types.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub <- ev:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// HandleWS upgrades the connection and streams broadcast events as JSON
// until the client goes away or the hub stops
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	// Drain client frames so pings and closes are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-h.stopCh:
			return
		}
	}
}
