package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category classifies an event by the kind of module that produced it
type Category string

const (
	CategorySystem        Category = "system"
	CategoryUser          Category = "user"
	CategoryPlugin        Category = "plugin"
	CategoryPayment       Category = "payment"
	CategorySecurity      Category = "security"
	CategoryCommunication Category = "communication"
	CategoryWebhook       Category = "webhook"
	CategoryError         Category = "error"
)

// Categories lists all valid event categories
var Categories = []Category{
	CategorySystem,
	CategoryUser,
	CategoryPlugin,
	CategoryPayment,
	CategorySecurity,
	CategoryCommunication,
	CategoryWebhook,
	CategoryError,
}

// Priority orders events for dispatch; higher values are served first
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
	PriorityEmergency
)

// NumPriorities is the number of priority levels
const NumPriorities = 5

// String returns the priority name
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether the priority is one of the five defined levels
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityEmergency
}

// ProcessingStatus tracks an event through the dispatch lifecycle
type ProcessingStatus string

const (
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
	StatusRetrying   ProcessingStatus = "retrying"
)

// Event is a structured notification accepted by the bus and delivered
// to registered handlers
type Event struct {
	ID              string                 `json:"id"`
	Category        Category               `json:"category"`
	Source          string                 `json:"source"`
	Priority        Priority               `json:"priority"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Hashtags        []string               `json:"hashtags,omitempty"`
	UserID          string                 `json:"user_id,omitempty"`
	TopicHint       string                 `json:"topic_hint,omitempty"`
	PersonalLogOnly bool                   `json:"personal_log_only,omitempty"`
	Status          ProcessingStatus       `json:"processing_status"`
	RetryCount      int                    `json:"retry_count"`
	Timestamp       time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp
func NewEvent(category Category, source string, priority Priority, title string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Category:  category,
		Source:    source,
		Priority:  priority,
		Title:     title,
		Status:    StatusQueued,
		Timestamp: time.Now().UTC(),
	}
}

// TransportKind identifies a delivery backend
type TransportKind string

const (
	TransportChat    TransportKind = "chat"
	TransportEmail   TransportKind = "email"
	TransportWebhook TransportKind = "webhook"
	TransportSMS     TransportKind = "sms"
)

// Recipient is a transport-tagged delivery address. Exactly one of the
// address fields is meaningful, selected by Transport.
type Recipient struct {
	Transport TransportKind `json:"transport"`
	ChatID    int64         `json:"chat_id,omitempty"`
	Email     string        `json:"email,omitempty"`
	URL       string        `json:"url,omitempty"`
	Phone     string        `json:"phone,omitempty"`
}

// ChatRecipient addresses a chat channel by its signed 64-bit id
func ChatRecipient(chatID int64) Recipient {
	return Recipient{Transport: TransportChat, ChatID: chatID}
}

// EmailRecipient addresses a mailbox
func EmailRecipient(addr string) Recipient {
	return Recipient{Transport: TransportEmail, Email: addr}
}

// WebhookRecipient addresses an HTTP endpoint
func WebhookRecipient(url string) Recipient {
	return Recipient{Transport: TransportWebhook, URL: url}
}

// SMSRecipient addresses a phone number in E.164 form
func SMSRecipient(e164 string) Recipient {
	return Recipient{Transport: TransportSMS, Phone: e164}
}

// Address returns the recipient address as a display string
func (r Recipient) Address() string {
	switch r.Transport {
	case TransportChat:
		return fmt.Sprintf("%d", r.ChatID)
	case TransportEmail:
		return r.Email
	case TransportWebhook:
		return r.URL
	case TransportSMS:
		return r.Phone
	default:
		return ""
	}
}

// Validate checks that the recipient carries an address for its transport
func (r Recipient) Validate() error {
	switch r.Transport {
	case TransportChat:
		if r.ChatID == 0 {
			return fmt.Errorf("chat recipient requires a channel id")
		}
	case TransportEmail:
		if r.Email == "" {
			return fmt.Errorf("email recipient requires an address")
		}
	case TransportWebhook:
		if r.URL == "" {
			return fmt.Errorf("webhook recipient requires a url")
		}
	case TransportSMS:
		if r.Phone == "" {
			return fmt.Errorf("sms recipient requires a phone number")
		}
	default:
		return fmt.Errorf("unknown transport: %s", r.Transport)
	}
	return nil
}

// MessageStatus tracks an outbound message
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
)

// Message is an outbound unit delivered to external recipients over one
// or more transports
type Message struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id,omitempty"`
	Subject             string            `json:"subject,omitempty"`
	Content             string            `json:"content"`
	TemplateID          string            `json:"template_id,omitempty"`
	TemplateVars        map[string]string `json:"template_variables,omitempty"`
	ParseMode           string            `json:"parse_mode,omitempty"`
	Recipients          []Recipient       `json:"recipients"`
	TopicHint           string            `json:"topic_hint,omitempty"`
	Hashtags            []string          `json:"hashtags,omitempty"`
	LogToPersonalServer bool              `json:"log_to_personal_server,omitempty"`
	Status              MessageStatus     `json:"status"`
	DeliveredAt         *time.Time        `json:"delivered_at,omitempty"`
}

// NewMessage creates a message with a fresh ID in pending state
func NewMessage(userID, subject, content string, recipients ...Recipient) *Message {
	return &Message{
		ID:         uuid.New().String(),
		UserID:     userID,
		Subject:    subject,
		Content:    content,
		Recipients: recipients,
		Status:     MessagePending,
	}
}

// Template holds per-transport body variants with {var} placeholders
type Template struct {
	ID       string                   `json:"id"`
	Variants map[TransportKind]string `json:"variants"`
}

// TopicCategory groups personal-log topics by concern
type TopicCategory string

const (
	TopicAuthentication TopicCategory = "authentication"
	TopicPlugin         TopicCategory = "plugin"
	TopicPayments       TopicCategory = "payments"
	TopicCommunication  TopicCategory = "communication"
	TopicSystem         TopicCategory = "system"
	TopicGeneral        TopicCategory = "general"
)

// TopicConfig governs classification of events into a user's personal-log
// topic. EncryptionRequired is a tri-state: nil means "use the global
// default".
type TopicConfig struct {
	TopicID            int           `json:"topic_id"`
	Name               string        `json:"name"`
	Category           TopicCategory `json:"category"`
	Hashtags           []string      `json:"hashtags,omitempty"`
	MatchCategories    []Category    `json:"matched_event_categories,omitempty"`
	MatchSources       []string      `json:"matched_sources,omitempty"`
	MatchKeywords      []string      `json:"matched_keywords,omitempty"`
	RetentionHours     int           `json:"retention_hours,omitempty"`
	EncryptionRequired *bool         `json:"encryption_required,omitempty"`
}

// PersonalLogEntry is one line mirrored into a user's personal log
// channel. Plain and Cipher are distinct fields: formatting fills Plain,
// encryption moves the content into Cipher and clears Plain.
type PersonalLogEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ChannelID     int64     `json:"channel_id"`
	TopicID       int       `json:"topic_id"`
	SourceEventID string    `json:"source_event_id"`
	Title         string    `json:"title"`
	Plain         string    `json:"plain,omitempty"`
	Cipher        []byte    `json:"cipher,omitempty"`
	Hashtags      []string  `json:"hashtags,omitempty"`
	LoggedAt      time.Time `json:"logged_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Encrypted     bool      `json:"encrypted"`
}

// Body returns the deliverable content: ciphertext when encrypted,
// plaintext otherwise
func (e *PersonalLogEntry) Body() string {
	if e.Encrypted {
		return string(e.Cipher)
	}
	return e.Plain
}

// WebhookRegistration describes an inbound webhook producer
type WebhookRegistration struct {
	ID              string        `json:"id"`
	Source          string        `json:"source"`
	EndpointURL     string        `json:"endpoint_url,omitempty"`
	EventTypes      []string      `json:"event_types,omitempty"`
	Active          bool          `json:"active"`
	VerifySignature bool          `json:"verify_signature"`
	SecretToken     []byte        `json:"-"`
	AllowedIPs      []string      `json:"allowed_ips,omitempty"`
	Timeout         time.Duration `json:"timeout,omitempty"`
}

// AllowedFrom reports whether the remote IP passes the registration's
// source filter. An empty filter allows any source.
func (w *WebhookRegistration) AllowedFrom(ip string) bool {
	if len(w.AllowedIPs) == 0 {
		return true
	}
	for _, allowed := range w.AllowedIPs {
		if allowed == ip {
			return true
		}
	}
	return false
}
