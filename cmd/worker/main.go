// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/app"
	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/logger"
	"github.com/unclebandit/omnipost-backend/internal/telemetry"
)

func main() {
	cfg, found, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if err := logger.Init(&logger.LogConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogOutput,
		LogPath:    cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}); err != nil {
		logrus.WithError(err).Fatal("failed to initialise logging")
	}
	log := logger.GetLogger("worker")
	if !found {
		log.Warn("no .env file found, relying on OS environment variables")
	}
	if cfg.RedisAddr == "" || cfg.AMQPURL == "" {
		log.Warn("REDIS_ADDR or AMQP_URL not set; this worker only sees posts scheduled in its own process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  cfg.ServiceName + "-worker",
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.SampleRate,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialise tracing")
	}

	a, err := app.Build(ctx, cfg, log, tp.Tracer())
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}
	defer a.Close()

	if err := run(ctx, a, cfg.PollInterval, log); err != nil {
		log.WithError(err).Fatal("worker failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown failed")
	}
}

// run restores the due index, starts the poller and post_due consumer, and
// blocks until ctx is cancelled.
func run(ctx context.Context, a *app.App, interval time.Duration, log logrus.FieldLogger) error {
	n, err := a.Resync(ctx)
	if err != nil {
		return err
	}
	log.WithField("count", n).Info("scheduled posts resynced")

	if err := a.StartWorker(ctx, interval, log); err != nil {
		return err
	}
	log.Info("worker running, waiting for due posts...")
	<-ctx.Done()
	log.Info("worker stopped")
	return nil
}
