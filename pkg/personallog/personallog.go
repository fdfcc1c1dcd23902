package personallog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/transport"
	"github.com/hearthside/relay/pkg/types"
)

// DefaultRetention applies to topics without an explicit retention
const DefaultRetention = 30 * 24 * time.Hour

// Options configures the router
type Options struct {
	// Transport delivers entries to channels; normally the chat adapter
	Transport transport.Transport
	// Encryptor seals entry content; nil disables encryption
	Encryptor Encryptor
	// EncryptByDefault applies to topics without an explicit
	// encryption_required setting
	EncryptByDefault bool
	// DefaultTTL overrides DefaultRetention when positive
	DefaultTTL time.Duration
}

type userChannel struct {
	channelID int64
	topics    []types.TopicConfig
}

// Router mirrors events into per-user personal log channels. Each user
// has one channel and an ordered topic list; classification picks the
// topic, formatting and optional encryption produce the entry.
type Router struct {
	mu     sync.RWMutex
	users  map[string]*userChannel
	opts   Options
	logger zerolog.Logger
}

// NewRouter creates a personal-log router
func NewRouter(opts Options) *Router {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultRetention
	}
	return &Router{
		users:  make(map[string]*userChannel),
		opts:   opts,
		logger: log.WithComponent("personallog"),
	}
}

// Configure sets a user's channel and topics, replacing any previous
// configuration. A general topic is appended when the list has none, so
// classification always terminates.
func (r *Router) Configure(userID string, channelID int64, topics []types.TopicConfig) error {
	if userID == "" {
		return fmt.Errorf("personal log requires a user id")
	}
	if channelID == 0 {
		return fmt.Errorf("personal log requires a channel id")
	}

	owned := make([]types.TopicConfig, len(topics))
	copy(owned, topics)

	hasGeneral := false
	for _, t := range owned {
		if t.Category == types.TopicGeneral {
			hasGeneral = true
			break
		}
	}
	if !hasGeneral {
		owned = append(owned, types.TopicConfig{Name: "general", Category: types.TopicGeneral})
	}

	r.mu.Lock()
	r.users[userID] = &userChannel{channelID: channelID, topics: owned}
	metrics.ConfiguredUsers.Set(float64(len(r.users)))
	r.mu.Unlock()

	logger := log.WithUserID(userID)
	logger.Info().Int64("channel_id", channelID).
		Int("topics", len(owned)).Msg("personal log configured")
	return nil
}

// Configured reports whether a user has a personal log channel
func (r *Router) Configured(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

// Handle is the bus subscriber. Events without a user, or for users with
// no configured channel, are skipped without error. Encryption failures
// drop the entry but never fail the event; delivery failures propagate
// so the bus can retry.
func (r *Router) Handle(ctx context.Context, ev *types.Event) error {
	if ev.UserID == "" {
		metrics.IncPersonalLogsSkipped()
		return nil
	}

	r.mu.RLock()
	user, ok := r.users[ev.UserID]
	r.mu.RUnlock()
	if !ok {
		metrics.IncPersonalLogsSkipped()
		return nil
	}

	topic := classify(user.topics, ev)
	entry := r.buildEntry(ev, user, topic)

	if r.encryptionRequired(topic) {
		if err := r.seal(entry); err != nil {
			metrics.IncPersonalLogsSkipped()
			r.logger.Error().Err(err).Str("event_id", ev.ID).Str("user_id", ev.UserID).
				Msg("entry encryption failed, dropped")
			return nil
		}
	}

	res := r.opts.Transport.Deliver(ctx, types.ChatRecipient(entry.ChannelID), transport.Rendered{
		Body:     entry.Body(),
		Hashtags: entry.Hashtags,
		UserID:   entry.UserID,
	})
	if res.Status == types.MessageFailed {
		return fmt.Errorf("personal log delivery: %s", res.Detail)
	}

	metrics.IncPersonalLogsWritten()
	return nil
}

func (r *Router) encryptionRequired(topic types.TopicConfig) bool {
	if topic.EncryptionRequired != nil {
		return *topic.EncryptionRequired
	}
	return r.opts.EncryptByDefault
}

// seal moves the entry content from Plain to Cipher
func (r *Router) seal(entry *types.PersonalLogEntry) error {
	if r.opts.Encryptor == nil {
		return fmt.Errorf("encryption required but no encryptor configured")
	}
	cipher, err := r.opts.Encryptor.Encrypt([]byte(entry.Plain))
	if err != nil {
		return err
	}
	entry.Cipher = cipher
	entry.Plain = ""
	entry.Encrypted = true
	return nil
}

func (r *Router) buildEntry(ev *types.Event, user *userChannel, topic types.TopicConfig) *types.PersonalLogEntry {
	now := time.Now().UTC()

	retention := r.opts.DefaultTTL
	if topic.RetentionHours > 0 {
		retention = time.Duration(topic.RetentionHours) * time.Hour
	}

	return &types.PersonalLogEntry{
		ID:            uuid.New().String(),
		UserID:        ev.UserID,
		ChannelID:     user.channelID,
		TopicID:       topic.TopicID,
		SourceEventID: ev.ID,
		Title:         ev.Title,
		Plain:         formatEntry(ev, topic),
		Hashtags:      mergeHashtags(ev.Hashtags, topic.Hashtags),
		LoggedAt:      now,
		ExpiresAt:     now.Add(retention),
	}
}

/// classify picks the topic for an event. Precedence: explicit hint by
// topic name, then category match, then source match, then keyword match
// against the lowercased title, then the general topic. Within a stage
// the first topic in configured order wins.
func classify(topics []types.TopicConfig, ev *types.Event) types.TopicConfig {
	if ev.TopicHint != "" {
		for _, t := range topics {
			if strings.EqualFold(t.Name, ev.TopicHint) {
				return t
			}
		}
	}

	for _, t := range topics {
		for _, c := range t.MatchCategories {
			if c == ev.Category {
				return t
			}
		}
	}

	for _, t := range topics {
		for _, s := range t.MatchSources {
			if s == ev.Source {
				return t
			}
		}
	}

	title := strings.ToLower(ev.Title)
	for _, t := range topics {
		for _, kw := range t.MatchKeywords {
			if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
				return t
			}
		}
	}

	for _, t := range topics {
		if t.Category == types.TopicGeneral {
			return t
		}
	}
	// Configure guarantees a general topic; unreachable for configured users
	return types.TopicConfig{Name: "general", Category: types.TopicGeneral}
}

// formatEntry renders the plaintext body: title header, description,
// structured data as JSON, hashtag tail
func formatEntry(ev *types.Event, topic types.TopicConfig) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(string(ev.Category)), ev.Title)
	fmt.Fprintf(&sb, "%s | %s | %s\n", ev.Timestamp.UTC().Format(time.RFC3339), ev.Priority.String(), ev.Source)

	if ev.Description != "" {
		sb.WriteString(ev.Description)
		sb.WriteString("\n")
	}
	if len(ev.Data) > 0 {
		if data, err := json.Marshal(ev.Data); err == nil {
			sb.Write(data)
			sb.WriteString("\n")
		}
	}

	tags := mergeHashtags(ev.Hashtags, topic.Hashtags)
	if len(tags) > 0 {
		sb.WriteString(strings.Join(tags, " "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// mergeHashtags concatenates event and topic hashtags, dropping
// duplicates while keeping order
func mergeHashtags(event, topic []string) []string {
	seen := make(map[string]bool, len(event)+len(topic))
	out := make([]string, 0, len(event)+len(topic))
	for _, tag := range append(append([]string{}, event...), topic...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
