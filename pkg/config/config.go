package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the enumerated option set recognized by the fabric. Unknown
// keys in the YAML file are a validation error, not silently ignored.
type Config struct {
	MaxQueueSize      int `yaml:"max_queue_size"`
	MaxRetryAttempts  int `yaml:"max_retry_attempts"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
	DispatcherWorkers int `yaml:"dispatcher_workers"`

	DefaultMessageTTLHours int  `yaml:"default_message_ttl_hours"`
	PersonalLogEncryption  bool `yaml:"personal_log_encryption"`

	WebsocketEnabled      bool `yaml:"websocket_enabled"`
	BroadcastSystemEvents bool `yaml:"broadcast_system_events"`
	BroadcastUserEvents   bool `yaml:"broadcast_user_events"`

	ListenAddr string `yaml:"listen_addr"`

	Chat    ChatConfig    `yaml:"chat"`
	Email   EmailConfig   `yaml:"email"`
	Webhook WebhookConfig `yaml:"webhook"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// ChatConfig configures the chat transport
type ChatConfig struct {
	Token string `yaml:"token"`
}

// EmailConfig configures the SMTP transport
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// WebhookConfig configures the outbound webhook transport
type WebhookConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Secret         string `yaml:"secret"`
}

// ArchiveConfig configures the optional event archive sink
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a config populated with the documented defaults
func Default() *Config {
	return &Config{
		MaxQueueSize:           10000,
		MaxRetryAttempts:       3,
		RetryDelaySeconds:      60,
		DispatcherWorkers:      4,
		DefaultMessageTTLHours: 720,
		ListenAddr:             ":9090",
		Webhook: WebhookConfig{
			TimeoutSeconds: 30,
		},
		Email: EmailConfig{
			Port: 587,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads and validates a YAML config file. Defaults are applied first,
// so a partial file only overrides what it names.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated config. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option ranges
func (c *Config) Validate() error {
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("max_queue_size must be positive, got %d", c.MaxQueueSize)
	}
	if c.MaxRetryAttempts <= 0 {
		return fmt.Errorf("max_retry_attempts must be positive, got %d", c.MaxRetryAttempts)
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("retry_delay_seconds must not be negative, got %d", c.RetryDelaySeconds)
	}
	if c.DispatcherWorkers < 1 {
		return fmt.Errorf("dispatcher_workers must be at least 1, got %d", c.DispatcherWorkers)
	}
	if c.DefaultMessageTTLHours <= 0 {
		return fmt.Errorf("default_message_ttl_hours must be positive, got %d", c.DefaultMessageTTLHours)
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		return fmt.Errorf("webhook timeout_seconds must be positive, got %d", c.Webhook.TimeoutSeconds)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// RetryDelay returns the base retry backoff as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// WebhookTimeout returns the outbound webhook timeout as a duration
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

// DefaultTTL returns the default personal-log retention as a duration
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultMessageTTLHours) * time.Hour
}
