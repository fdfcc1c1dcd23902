package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthside/relay/pkg/archive"
	"github.com/hearthside/relay/pkg/config"
	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/metrics"
	"github.com/hearthside/relay/pkg/personallog"
	"github.com/hearthside/relay/pkg/relay"
	"github.com/hearthside/relay/pkg/transport"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay - Personal event bus and delivery fabric",
	Long: `Relay is the event bus and delivery fabric for a personal
infrastructure platform: a priority queue feeding a handler dispatcher,
multi-transport message delivery, verified inbound webhooks, and
per-user personal log channels.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Relay version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay fabric",
	Long: `Start the dispatcher, the delivery transports configured in the
config file, and the operations HTTP listener (metrics, health, inbound
webhooks, and the websocket event stream when enabled).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")

		cfg := config.Default()
		if cfgPath != "" {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})
		metrics.SetVersion(Version)

		transports, err := buildTransports(cfg)
		if err != nil {
			return err
		}

		var store archive.Store
		if cfg.Archive.Path != "" {
			store, err = archive.NewBoltStore(cfg.Archive.Path)
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
		}

		encryptor, err := buildEncryptor(cfg)
		if err != nil {
			return err
		}

		r, err := relay.New(relay.Options{
			Config:     cfg,
			Transports: transports,
			Encryptor:  encryptor,
			Store:      store,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := r.Start(ctx); err != nil {
			return err
		}

		ops := newOpsServer(cfg.ListenAddr, r)
		errCh := make(chan error, 1)
		go func() {
			if err := ops.start(); err != nil {
				errCh <- fmt.Errorf("ops listener error: %w", err)
			}
		}()

		log.Info(fmt.Sprintf("relay serving on %s", cfg.ListenAddr))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Info("shutting down")
		case err := <-errCh:
			log.Errorf("listener failed", err)
		}

		ops.stop()
		return r.Shutdown(30 * time.Second)
	},
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Validate a config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s is valid\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

// buildTransports assembles the delivery adapters the config enables.
// The webhook and sms adapters need no credentials and are always
// present.
func buildTransports(cfg *config.Config) ([]transport.Transport, error) {
	var transports []transport.Transport

	if cfg.Chat.Token != "" {
		chat, err := transport.NewChatTransport(cfg.Chat.Token)
		if err != nil {
			return nil, err
		}
		transports = append(transports, chat)
	}

	if cfg.Email.Host != "" {
		transports = append(transports, transport.NewEmailTransport(transport.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		}))
	}

	transports = append(transports,
		transport.NewWebhookTransport(cfg.WebhookTimeout(), []byte(cfg.Webhook.Secret)),
		transport.NewSMSTransport(),
	)
	return transports, nil
}

// buildEncryptor reads the personal-log key from RELAY_ENCRYPTION_KEY
// (hex, 32 bytes). The key stays out of the config file on purpose.
func buildEncryptor(cfg *config.Config) (personallog.Encryptor, error) {
	if !cfg.PersonalLogEncryption {
		return nil, nil
	}
	raw := os.Getenv("RELAY_ENCRYPTION_KEY")
	if raw == "" {
		return nil, fmt.Errorf("personal_log_encryption is on but RELAY_ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("RELAY_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return personallog.NewAESEncryptor(key)
}
