package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/archive"
	"github.com/hearthside/relay/pkg/broadcast"
	"github.com/hearthside/relay/pkg/bus"
	"github.com/hearthside/relay/pkg/config"
	"github.com/hearthside/relay/pkg/delivery"
	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/personallog"
	"github.com/hearthside/relay/pkg/template"
	"github.com/hearthside/relay/pkg/transport"
	"github.com/hearthside/relay/pkg/types"
	"github.com/hearthside/relay/pkg/webhook"
)

// Options assembles a Relay. Config is mandatory; everything else has a
// working zero value.
type Options struct {
	Config *config.Config
	// Transports used for message delivery. The chat adapter, when
	// present, also carries personal log entries.
	Transports []transport.Transport
	// Encryptor seals personal log entries when encryption is enabled
	Encryptor personallog.Encryptor
	// Store persists terminal events, delivered messages and webhook
	// registrations; nil disables persistence
	Store archive.Store
}

// Relay is the event fabric facade: one constructor wires the queue,
// dispatcher, template engine, delivery pipeline, inbound webhooks,
// personal logs and the broadcast hub behind a single API.
type Relay struct {
	cfg      *config.Config
	bus      *bus.Bus
	engine   *template.Engine
	pipeline *delivery.Pipeline
	webhooks *webhook.Service
	plog     *personallog.Router
	hub      *broadcast.Hub
	store    archive.Store
	logger   zerolog.Logger
	started  bool
}

// New wires a relay from options. Persisted webhook registrations are
// restored before the relay starts.
func New(opts Options) (*Relay, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var sink bus.ArchiveSink
	if opts.Store != nil {
		sink = opts.Store
	}

	b := bus.New(bus.Options{
		QueueSize:   cfg.MaxQueueSize,
		Workers:     cfg.DispatcherWorkers,
		MaxAttempts: cfg.MaxRetryAttempts,
		RetryDelay:  cfg.RetryDelay(),
		Archive:     sink,
	})

	engine := template.NewEngine()
	pipeline := delivery.NewPipeline(engine, b, opts.Transports...)
	webhooks := webhook.NewService(b)

	var chat transport.Transport
	for _, tr := range opts.Transports {
		if tr.Kind() == types.TransportChat {
			chat = tr
		}
	}

	var plog *personallog.Router
	if chat != nil {
		plog = personallog.NewRouter(personallog.Options{
			Transport:        chat,
			Encryptor:        opts.Encryptor,
			EncryptByDefault: cfg.PersonalLogEncryption,
			DefaultTTL:       cfg.DefaultTTL(),
		})
	}

	var hub *broadcast.Hub
	if cfg.WebsocketEnabled {
		hub = broadcast.NewHub(broadcast.Options{
			SystemEvents: cfg.BroadcastSystemEvents,
			UserEvents:   cfg.BroadcastUserEvents,
		})
	}

	r := &Relay{
		cfg:      cfg,
		bus:      b,
		engine:   engine,
		pipeline: pipeline,
		webhooks: webhooks,
		plog:     plog,
		hub:      hub,
		store:    opts.Store,
		logger:   log.WithComponent("relay"),
	}

	if err := r.restoreWebhooks(); err != nil {
		return nil, err
	}
	return r, nil
}

// restoreWebhooks reloads persisted registrations. Secrets are not
// persisted, so restored webhooks that verified signatures come back
// inactive until re-registered with their secret.
func (r *Relay) restoreWebhooks() error {
	if r.store == nil {
		return nil
	}
	regs, err := r.store.ListWebhooks()
	if err != nil {
		return fmt.Errorf("restore webhooks: %w", err)
	}
	for _, reg := range regs {
		if reg.VerifySignature && len(reg.SecretToken) == 0 {
			reg.Active = false
		}
		if _, err := r.webhooks.Register(*reg); err != nil {
			return fmt.Errorf("restore webhook %s: %w", reg.ID, err)
		}
	}
	return nil
}

// Start registers the built-in handlers and launches the dispatcher.
// Additional handlers may be registered before Start; Start is not
// reentrant.
func (r *Relay) Start(ctx context.Context) error {
	if r.started {
		return fmt.Errorf("relay already started")
	}
	r.started = true

	reg := r.bus.Registry()

	// Every event leaves a structured trace
	reg.RegisterAll("event-log", r.logEvent)

	if r.plog != nil {
		reg.RegisterAll(bus.PersonalLogHandler, r.plog.Handle)
	}
	if r.hub != nil {
		r.hub.Start()
		reg.RegisterAll("broadcast", r.hub.Handle)
	}

	r.bus.Start(ctx)
	metrics.SetQueueProbe(r.bus.Queue().Len, r.cfg.MaxQueueSize*types.NumPriorities)
	r.logger.Info().Msg("relay started")
	return nil
}

func (r *Relay) logEvent(ctx context.Context, ev *types.Event) error {
	r.logger.Debug().
		Str("event_id", ev.ID).
		Str("category", string(ev.Category)).
		Str("priority", ev.Priority.String()).
		Str("source", ev.Source).
		Str("title", ev.Title).
		Msg("event dispatched")
	return nil
}

// Publish submits one event to the fabric
func (r *Relay) Publish(ev *types.Event) bus.PublishResult {
	return r.bus.Publish(ev)
}

// PublishBatch submits events in order and returns per-event results
func (r *Relay) PublishBatch(events []*types.Event) []bus.PublishResult {
	return r.bus.PublishBatch(events)
}

// RegisterHandler subscribes a handler to one event category
func (r *Relay) RegisterHandler(category types.Category, name string, fn bus.HandlerFunc) {
	r.bus.Registry().Register(category, name, fn)
}

// RegisterHandlerAll subscribes a handler to every category
func (r *Relay) RegisterHandlerAll(name string, fn bus.HandlerFunc) {
	r.bus.Registry().RegisterAll(name, fn)
}

// RegisterTemplate adds or replaces a message template
func (r *Relay) RegisterTemplate(tpl types.Template) {
	r.engine.Register(tpl)
}

// Send delivers a message through the pipeline and, when a store is
// configured, records the final message state
func (r *Relay) Send(ctx context.Context, msg *types.Message) ([]delivery.Outcome, error) {
	outcomes, err := r.pipeline.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		if werr := r.store.WriteMessage(msg); werr != nil {
			r.logger.Error().Err(werr).Str("message_id", msg.ID).Msg("message archive write failed")
		}
	}
	return outcomes, nil
}

// RegisterWebhook stores an inbound webhook registration
func (r *Relay) RegisterWebhook(reg types.WebhookRegistration) (*types.WebhookRegistration, error) {
	stored, err := r.webhooks.Register(reg)
	if err != nil {
		return nil, err
	}
	if r.store != nil {
		if werr := r.store.SaveWebhook(stored); werr != nil {
			r.logger.Error().Err(werr).Str("webhook_id", stored.ID).Msg("webhook persist failed")
		}
	}
	return stored, nil
}

// RemoveWebhook deletes an inbound webhook registration
func (r *Relay) RemoveWebhook(id string) error {
	if err := r.webhooks.Remove(id); err != nil {
		return err
	}
	if r.store != nil {
		if werr := r.store.DeleteWebhook(id); werr != nil {
			r.logger.Error().Err(werr).Str("webhook_id", id).Msg("webhook delete failed")
		}
	}
	return nil
}

// ProcessWebhook verifies an inbound payload and publishes it as an
// event on success. The event type is read from the payload's
// event_type field unless eventType overrides it.
func (r *Relay) ProcessWebhook(ctx context.Context, id, eventType string, payload map[string]interface{}, signature string) webhook.Result {
	return r.webhooks.Process(ctx, id, eventType, payload, signature)
}

// Webhook returns one registered inbound webhook
func (r *Relay) Webhook(id string) (*types.WebhookRegistration, error) {
	return r.webhooks.Get(id)
}

// Webhooks lists the registered inbound webhooks
func (r *Relay) Webhooks() []*types.WebhookRegistration {
	return r.webhooks.List()
}

// ConfigurePersonalChannel sets a user's personal log channel and topics
func (r *Relay) ConfigurePersonalChannel(userID string, channelID int64, topics []types.TopicConfig) error {
	if r.plog == nil {
		return fmt.Errorf("personal logs require a chat transport")
	}
	return r.plog.Configure(userID, channelID, topics)
}

// Hub returns the websocket broadcast hub, nil when disabled
func (r *Relay) Hub() *broadcast.Hub {
	return r.hub
}

// Health returns the component health report
func (r *Relay) Health() metrics.HealthStatus {
	return metrics.GetHealth()
}

// Metrics returns the in-process counter snapshot
func (r *Relay) Metrics() metrics.Snapshot {
	return metrics.GetSnapshot()
}

// QueueDepth returns the number of queued events across priorities
func (r *Relay) QueueDepth() int {
	return r.bus.Queue().Len()
}

/// Shutdown drains the fabric: no new publishes, queued events dispatched,
// in-flight handlers given until the deadline
func (r *Relay) Shutdown(deadline time.Duration) error {
	err := r.bus.Shutdown(deadline)
	if r.hub != nil {
		r.hub.Stop()
	}
	if r.store != nil {
		if cerr := r.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.logger.Info().Msg("relay stopped")
	return err
}
