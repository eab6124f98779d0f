// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/app"
	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/controller"
	"github.com/unclebandit/omnipost-backend/internal/handler"
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
	log := logger.GetLogger("server")
	if !found {
		log.Warn("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  cfg.ServiceName,
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

	if cfg.WorkerInline {
		if n, err := a.Resync(ctx); err != nil {
			log.WithError(err).Error("failed to resync scheduled posts")
		} else {
			log.WithField("count", n).Info("scheduled posts resynced")
		}
		if err := a.StartWorker(ctx, cfg.PollInterval, log.WithField("component", "worker")); err != nil {
			log.WithError(err).Fatal("failed to start inline worker")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           NewRouter(a, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Address).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown failed")
	}
}

// NewRouter mounts every API route.
func NewRouter(a *app.App, cfg *config.Config, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if a.DB != nil {
			if err := a.DB.PingContext(r.Context()); err != nil {
				handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
				return
			}
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	(&controller.PostController{PostService: a.Posts, Log: log}).Routes(r)
	(&handler.TemplateHandler{Service: a.Templates, Log: log}).Routes(r)
	(&handler.CalendarHandler{Service: a.Posts, Log: log}).Routes(r)
	(&handler.MediaHandler{Store: a.Media, Log: log}).Routes(r)

	r.Handle("/media/files/*", http.StripPrefix("/media/files/", http.FileServer(http.Dir(cfg.MediaDir))))
	return r
}
