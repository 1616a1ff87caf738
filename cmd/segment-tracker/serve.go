package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/events"
	"Mansoor88-6/segment-tracker/internal/handler"
	"Mansoor88-6/segment-tracker/internal/metrics"
	"Mansoor88-6/segment-tracker/internal/queue"
	"Mansoor88-6/segment-tracker/internal/router"
	"Mansoor88-6/segment-tracker/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	log := a.log.Logger
	cfg := a.cfg

	log.Info("Starting segment tracker",
		zap.String("env", cfg.Env),
		zap.String("config_path", configPath),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.Enabled {
		relay := queue.NewRelay(
			events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, log),
			queue.NewEventQueue(a.db.DB, log),
			cfg.Events.RetryInterval,
			cfg.Events.QueueRetention,
			log,
		)
		relay.Start()
		publisher = relay
		log.Info("Publishing segment events",
			zap.Strings("brokers", cfg.Events.Brokers),
			zap.String("topic", cfg.Events.Topic),
		)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	segments := service.NewSegmentService(a.repo, publisher, m, log)
	analytics := service.NewAnalyticsService(a.repo, m, log)

	srv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: router.New(
			handler.NewSegmentHandler(segments, log),
			handler.NewAnalyticsHandler(analytics, log),
			m,
			cfg.HTTP.CORSOrigins,
			log,
		),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
		return err
	}

	log.Info("Segment tracker stopped")
	return nil
}
