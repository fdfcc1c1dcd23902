package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/bus"
	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/types"
)

var (
	// ErrDuplicateWebhook is returned when a registration id is already taken
	ErrDuplicateWebhook = fmt.Errorf("webhook already registered")
	// ErrUnknownWebhook is returned for operations on an unregistered id
	ErrUnknownWebhook = fmt.Errorf("unknown webhook")
)

// Publisher accepts events produced from verified webhook payloads
type Publisher interface {
	Publish(ev *types.Event) bus.PublishResult
}

// Result describes the outcome of processing one inbound payload
type Result struct {
	Verified  bool   `json:"verified"`
	Processed bool   `json:"processed"`
	EventID   string `json:"event_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Service keeps webhook registrations and turns verified inbound
// payloads into events
type Service struct {
	mu      sync.RWMutex
	regs    map[string]*types.WebhookRegistration
	publish Publisher
	logger  zerolog.Logger
}

// NewService creates a webhook service publishing to the given bus
func NewService(publish Publisher) *Service {
	return &Service{
		regs:    make(map[string]*types.WebhookRegistration),
		publish: publish,
		logger:  log.WithComponent("webhook"),
	}
}

// Register stores a registration. A missing id is assigned; a taken id
// is rejected.
func (s *Service) Register(reg types.WebhookRegistration) (*types.WebhookRegistration, error) {
	if reg.Source == "" {
		return nil, fmt.Errorf("webhook registration requires a source")
	}
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.regs[reg.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateWebhook, reg.ID)
	}
	s.regs[reg.ID] = &reg
	metrics.RegisteredWebhooks.Set(float64(len(s.regs)))

	s.logger.Info().Str("webhook_id", reg.ID).Str("source", reg.Source).Msg("webhook registered")
	return &reg, nil
}

// Remove deletes a registration
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.regs[id]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownWebhook, id)
	}
	delete(s.regs, id)
	metrics.RegisteredWebhooks.Set(float64(len(s.regs)))
	return nil
}

// Get returns a copy of a registration
func (s *Service) Get(id string) (*types.WebhookRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, exists := s.regs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWebhook, id)
	}
	out := *reg
	return &out, nil
}

// List returns copies of all registrations
func (s *Service) List() []*types.WebhookRegistration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.WebhookRegistration, 0, len(s.regs))
	for _, reg := range s.regs {
		cp := *reg
		out = append(out, &cp)
	}
	return out
}

// Count returns the number of registrations
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}

// Process verifies an inbound payload against its registration and, on
// success, publishes a webhook event carrying the payload. The event
// type comes from the payload's event_type field; a non-empty
// eventType argument overrides it. Every rejection leaves the bus
// untouched. Registrations with a timeout bound the whole processing
// pass through ctx.
func (s *Service) Process(ctx context.Context, id, eventType string, payload map[string]interface{}, signature string) Result {
	s.mu.RLock()
	reg, exists := s.regs[id]
	s.mu.RUnlock()

	if !exists {
		return s.reject(id, "unknown webhook")
	}
	if !reg.Active {
		return s.reject(id, "webhook inactive")
	}

	if reg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reg.Timeout)
		defer cancel()
	}

	if eventType == "" {
		if v, ok := payload["event_type"].(string); ok {
			eventType = v
		}
	}
	if eventType == "" {
		return s.reject(id, "missing event type")
	}
	if len(reg.EventTypes) > 0 && !contains(reg.EventTypes, eventType) {
		return s.reject(id, fmt.Sprintf("event type %q not accepted", eventType))
	}

	if reg.VerifySignature {
		ok, err := VerifyPayload(reg.SecretToken, payload, signature)
		if err != nil {
			return s.reject(id, fmt.Sprintf("canonicalize payload: %v", err))
		}
		if !ok {
			return s.reject(id, "signature mismatch")
		}
	}

	if ctx.Err() != nil {
		return s.reject(id, "processing deadline exceeded")
	}

	ev := types.NewEvent(types.CategoryWebhook, reg.Source, types.PriorityNormal,
		fmt.Sprintf("webhook:%s", eventType))
	ev.Hashtags = []string{"#webhook", "#" + reg.Source}
	ev.Data = payload

	res := s.publish.Publish(ev)
	if !res.Accepted {
		return Result{Verified: true, Processed: false, Reason: res.Reason}
	}

	metrics.IncWebhooksReceived()
	return Result{Verified: true, Processed: true, EventID: ev.ID}
}

func (s *Service) reject(id, reason string) Result {
	metrics.IncWebhooksRejected()
	s.logger.Warn().Str("webhook_id", id).Str("reason", reason).Msg("webhook rejected")
	return Result{Reason: reason}
}

// CanonicalJSON renders the payload in the canonical signing form: keys
// sorted, no insignificant whitespace
func CanonicalJSON(payload map[string]interface{}) ([]byte, error) {
	return json.Marshal(payload)
}

// VerifyPayload checks an HMAC-SHA256 signature over the canonical
// payload encoding. The signature may carry a "sha256=" prefix. The
// comparison is constant time.
func VerifyPayload(secret []byte, payload map[string]interface{}, signature string) (bool, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return false, err
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	expected := hex.EncodeToString(mac.Sum(nil))

	got := strings.TrimPrefix(signature, "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(got))), nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
