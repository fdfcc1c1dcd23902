package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/relay/pkg/bus"
	"github.com/hearthside/relay/pkg/types"
)

type fakePublisher struct {
	events []*types.Event
	reject bool
}

func (f *fakePublisher) Publish(ev *types.Event) bus.PublishResult {
	if f.reject {
		return bus.PublishResult{ID: ev.ID, Accepted: false, Reason: "queue-full"}
	}
	f.events = append(f.events, ev)
	return bus.PublishResult{ID: ev.ID, Accepted: true}
}

func sign(secret []byte, payload map[string]interface{}) string {
	canonical, _ := CanonicalJSON(payload)
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestRegister(t *testing.T) {
	s := NewService(&fakePublisher{})

	reg, err := s.Register(types.WebhookRegistration{Source: "github", Active: true})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ID)
	assert.Equal(t, 1, s.Count())

	// Explicit id collision
	_, err = s.Register(types.WebhookRegistration{ID: reg.ID, Source: "gitlab"})
	assert.ErrorIs(t, err, ErrDuplicateWebhook)

	// Source is mandatory
	_, err = s.Register(types.WebhookRegistration{})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := NewService(&fakePublisher{})

	reg, err := s.Register(types.WebhookRegistration{Source: "github", Active: true})
	require.NoError(t, err)

	require.NoError(t, s.Remove(reg.ID))
	assert.Equal(t, 0, s.Count())
	assert.ErrorIs(t, s.Remove(reg.ID), ErrUnknownWebhook)

	_, err = s.Get(reg.ID)
	assert.ErrorIs(t, err, ErrUnknownWebhook)
}

func TestProcess_PublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	reg, err := s.Register(types.WebhookRegistration{Source: "github", Active: true})
	require.NoError(t, err)

	payload := map[string]interface{}{"action": "opened", "number": float64(7)}
	res := s.Process(context.Background(), reg.ID, "pull_request", payload, "")

	assert.True(t, res.Verified)
	assert.True(t, res.Processed)
	assert.NotEmpty(t, res.EventID)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, types.CategoryWebhook, ev.Category)
	assert.Equal(t, "github", ev.Source)
	assert.Equal(t, types.PriorityNormal, ev.Priority)
	assert.Equal(t, "webhook:pull_request", ev.Title)
	assert.Equal(t, []string{"#webhook", "#github"}, ev.Hashtags)
	assert.Equal(t, payload, ev.Data)
}

func TestProcess_Rejections(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	active, err := s.Register(types.WebhookRegistration{
		Source:     "ci",
		Active:     true,
		EventTypes: []string{"build_finished"},
	})
	require.NoError(t, err)

	inactive, err := s.Register(types.WebhookRegistration{Source: "old", Active: false})
	require.NoError(t, err)

	tests := []struct {
		name      string
		id        string
		eventType string
		reason    string
	}{
		{"unknown id", "nope", "build_finished", "unknown webhook"},
		{"inactive", inactive.ID, "anything", "webhook inactive"},
		{"event type not allowed", active.ID, "build_started", "not accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Process(context.Background(), tt.id, tt.eventType, nil, "")
			assert.False(t, res.Verified)
			assert.False(t, res.Processed)
			assert.Contains(t, res.Reason, tt.reason)
		})
	}

	assert.Empty(t, pub.events)
}

func TestProcess_SignatureVerification(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	secret := []byte("whsec_test")
	reg, err := s.Register(types.WebhookRegistration{
		Source:          "stripe",
		Active:          true,
		VerifySignature: true,
		SecretToken:     secret,
	})
	require.NoError(t, err)

	payload := map[string]interface{}{
		"type":   "invoice.paid",
		"amount": float64(4200),
	}

	res := s.Process(context.Background(), reg.ID, "invoice.paid", payload, sign(secret, payload))
	assert.True(t, res.Verified)
	assert.True(t, res.Processed)

	// Wrong secret
	res = s.Process(context.Background(), reg.ID, "invoice.paid", payload, sign([]byte("other"), payload))
	assert.False(t, res.Verified)
	assert.Equal(t, "signature mismatch", res.Reason)

	// Tampered payload
	tampered := map[string]interface{}{"type": "invoice.paid", "amount": float64(1)}
	res = s.Process(context.Background(), reg.ID, "invoice.paid", tampered, sign(secret, payload))
	assert.False(t, res.Verified)

	// No signature at all
	res = s.Process(context.Background(), reg.ID, "invoice.paid", payload, "")
	assert.False(t, res.Verified)

	require.Len(t, pub.events, 1)
}

func TestVerifyPayload_PrefixAndCase(t *testing.T) {
	secret := []byte("k")
	payload := map[string]interface{}{"b": float64(2), "a": "one"}

	canonical, err := CanonicalJSON(payload)
	require.NoError(t, err)
	// Keys are emitted sorted regardless of construction order
	assert.Equal(t, `{"a":"one","b":2}`, string(canonical))

	mac := hmac.New(sha256.New, secret)
	mac.Write(canonical)
	hexSig := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range []string{hexSig, "sha256=" + hexSig} {
		ok, err := VerifyPayload(secret, payload, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := VerifyPayload(secret, payload, "sha256=deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcess_EventTypeFromPayload(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	reg, err := s.Register(types.WebhookRegistration{
		Source:     "github",
		Active:     true,
		EventTypes: []string{"push"},
	})
	require.NoError(t, err)

	// The payload carries its own event type; no override passed
	payload := map[string]interface{}{"event_type": "push", "ref": "main"}
	res := s.Process(context.Background(), reg.ID, "", payload, "")
	require.True(t, res.Processed)
	require.Len(t, pub.events, 1)
	assert.Equal(t, "webhook:push", pub.events[0].Title)

	// An explicit argument overrides the payload field
	res = s.Process(context.Background(), reg.ID, "push",
		map[string]interface{}{"event_type": "release"}, "")
	require.True(t, res.Processed)
	assert.Equal(t, "webhook:push", pub.events[1].Title)

	// The allowlist applies to the payload-derived type
	res = s.Process(context.Background(), reg.ID, "",
		map[string]interface{}{"event_type": "release"}, "")
	assert.False(t, res.Processed)
	assert.Contains(t, res.Reason, "not accepted")

	// No event type anywhere
	res = s.Process(context.Background(), reg.ID, "", map[string]interface{}{"ref": "main"}, "")
	assert.False(t, res.Processed)
	assert.Equal(t, "missing event type", res.Reason)
}

func TestProcess_TimeoutRejection(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	reg, err := s.Register(types.WebhookRegistration{
		Source:  "slow",
		Active:  true,
		Timeout: time.Nanosecond,
	})
	require.NoError(t, err)

	// A nanosecond deadline is already in the past once the processing
	// pass reaches its deadline check
	res := s.Process(context.Background(), reg.ID, "ping", nil, "")
	assert.False(t, res.Processed)
	assert.Equal(t, "processing deadline exceeded", res.Reason)
	assert.Empty(t, pub.events)
}

func TestProcess_CancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	s := NewService(pub)

	reg, err := s.Register(types.WebhookRegistration{Source: "ci", Active: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Process(ctx, reg.ID, "build_finished", nil, "")
	assert.False(t, res.Processed)
	assert.Equal(t, "processing deadline exceeded", res.Reason)
	assert.Empty(t, pub.events)
}

func TestProcess_BusRejection(t *testing.T) {
	pub := &fakePublisher{reject: true}
	s := NewService(pub)

	reg, err := s.Register(types.WebhookRegistration{Source: "ci", Active: true})
	require.NoError(t, err)

	res := s.Process(context.Background(), reg.ID, "build_finished", nil, "")
	assert.True(t, res.Verified)
	assert.False(t, res.Processed)
	assert.Equal(t, "queue-full", res.Reason)
}
