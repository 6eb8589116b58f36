package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/app"
	"github.com/GoCodeAlone/storefront/catalogsync"
	"github.com/GoCodeAlone/storefront/httpapi"
	"github.com/GoCodeAlone/storefront/orderapi"
	"github.com/GoCodeAlone/storefront/relay"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := storefront.LoadConfig(path)
			if err != nil {
				return err
			}
			logger := NewLogger(cfg.Log, cmd.ErrOrStderr())

			a, err := Build(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "Configuration file (yaml, json or toml)")
	return cmd
}

// NewLogger creates the slog logger described by cfg.
func NewLogger(cfg storefront.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Build wires the application and every module enabled by cfg.
func Build(cfg *storefront.Config, logger *slog.Logger) (*app.App, error) {
	client, err := orderapi.New(cfg.API.BaseURL, cfg.API.Timeout, logger)
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, logger, client)
	if err != nil {
		return nil, err
	}

	var source catalogsync.Source = client
	if cfg.Catalog.SeedFile != "" {
		source = catalogsync.NewFileSource(cfg.Catalog.SeedFile)
	}
	refresher := catalogsync.NewRefresher("catalog-refresher", source, cfg.Catalog.RefreshSchedule)

	modules := []storefront.Module{refresher}
	if cfg.Catalog.SeedFile != "" && cfg.Catalog.WatchSeedFile {
		modules = append(modules, catalogsync.NewWatcher("catalog-watcher", cfg.Catalog.SeedFile, refresher.Refresh))
	}

	orderRelay, err := buildRelay(cfg.Relay)
	if err != nil {
		return nil, err
	}
	if orderRelay != nil {
		modules = append(modules, orderRelay)
	}

	server, err := httpapi.New(a)
	if err != nil {
		return nil, err
	}
	modules = append(modules, server)

	for _, m := range modules {
		if err := a.RegisterModule(m); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// buildRelay returns nil when no sink is configured.
func buildRelay(cfg storefront.RelayConfig) (*relay.Relay, error) {
	r := relay.New("order-relay", cfg.Source)
	var observers []relay.Observer

	if cfg.SinkURL != "" {
		sink, err := relay.NewHTTPSink("cloudevents-sink", cfg.SinkURL)
		if err != nil {
			return nil, err
		}
		observers = append(observers, sink)
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := relay.NewKafkaObserver("kafka", cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		observers = append(observers, producer)
	}
	if cfg.SMTPHost != "" {
		mailer, err := relay.NewSMTPMailer("mailer", cfg.MailFrom, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
		if err != nil {
			return nil, err
		}
		if err := r.RegisterObserver(mailer, relay.EventTypeOrderSubmitted); err != nil {
			return nil, err
		}
	}

	for _, o := range observers {
		if err := r.RegisterObserver(o); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", o.ObserverID(), err)
		}
	}
	if len(r.GetObservers()) == 0 {
		return nil, nil
	}
	return r, nil
}
