// Package app assembles repositories, publishers, scheduler and queue from config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/db"
	"github.com/unclebandit/omnipost-backend/internal/media"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/publisher"
	"github.com/unclebandit/omnipost-backend/internal/queue"
	"github.com/unclebandit/omnipost-backend/internal/repository"
	"github.com/unclebandit/omnipost-backend/internal/scheduler"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

type App struct {
	Posts     *service.PostService
	Templates *service.TemplateService
	Media     media.Store
	Scheduler scheduler.Scheduler
	Queue     queue.Queue
	DB        *sql.DB

	// StuckAfter is how long a post may sit in sending before Resync fails it.
	StuckAfter time.Duration

	closers []func() error
}

// Build connects to every configured backend. Unconfigured backends fall back to
// their in-memory versions so a bare checkout runs with no infrastructure.
func Build(ctx context.Context, cfg *config.Config, log *logrus.Logger, tracer trace.Tracer) (*App, error) {
	a := &App{StuckAfter: cfg.StuckAfter}
	clock := service.SystemClock{}

	var (
		posts      repository.PostRepositoryInterface
		templates  repository.TemplateRepositoryInterface
		recipients repository.RecipientRepositoryInterface
		deliveries repository.DeliveryRepositoryInterface
	)
	if cfg.UsePostgres() {
		conn, err := db.Open(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		a.DB = conn
		a.closers = append(a.closers, conn.Close)
		if err := db.Migrate(ctx, conn); err != nil {
			a.Close()
			return nil, err
		}
		posts = &repository.PostRepository{DB: conn}
		templates = &repository.TemplateRepository{DB: conn}
		recipients = &repository.RecipientRepository{DB: conn}
		deliveries = &repository.DeliveryRepository{DB: conn}
		log.WithField("host", cfg.DBHost).Info("connected to database")
	} else {
		posts = repository.NewMemoryPostRepository()
		templates = repository.NewMemoryTemplateRepository()
		recipients = repository.NewMemoryRecipientDirectory()
		deliveries = repository.NewMemoryDeliveryRepository()
		log.Warn("DB_HOST not set, using in-memory stores")
	}

	if cfg.RedisAddr != "" {
		rs, err := scheduler.NewRedisScheduler(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Scheduler = rs
		a.closers = append(a.closers, rs.Close)
	} else {
		a.Scheduler = scheduler.NewMemoryScheduler()
	}

	if cfg.AMQPURL != "" {
		aq, err := queue.NewAMQPQueue(cfg.AMQPURL, log.WithField("component", "queue"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = aq
		a.closers = append(a.closers, aq.Close)
	} else {
		a.Queue = queue.NewInMemoryQueue(log.WithField("component", "queue"))
	}

	store, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Media = store

	a.Templates = &service.TemplateService{Repo: templates, Clock: clock, Log: log.WithField("component", "templates")}
	a.Posts = &service.PostService{
		PostRepo:       posts,
		Recipients:     recipients,
		Deliveries:     deliveries,
		Templates:      a.Templates,
		Publishers:     Publishers(cfg, log),
		Trigger:        a.Scheduler,
		Clock:          clock,
		Log:            log.WithField("component", "posts"),
		Tracer:         tracer,
		FanOutLimit:    cfg.FanOutLimit,
		PublishTimeout: cfg.PublishTimeout,
	}
	return a, nil
}

// Publishers maps each channel to its transport. Channels with no transport
// configured use the log publisher.
func Publishers(cfg *config.Config, log logrus.FieldLogger) *publisher.Registry {
	reg := publisher.NewRegistry().Fallback(&publisher.LogPublisher{Log: log.WithField("component", "publisher")})

	if cfg.SMTPHost != "" {
		reg.Register(model.ChannelEmail, publisher.NewEmailPublisher(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SMTPFromName,
		))
	}

	client := &http.Client{Timeout: cfg.PublishTimeout + 5*time.Second}
	webhook := func(url string) publisher.Publisher {
		return &publisher.WebhookPublisher{URL: url, Token: cfg.WebhookToken, Client: client}
	}
	if cfg.SMSWebhookURL != "" {
		reg.Register(model.ChannelSMS, webhook(cfg.SMSWebhookURL))
	}
	if cfg.WhatsAppWebhookURL != "" {
		reg.Register(model.ChannelWhatsApp, webhook(cfg.WhatsAppWebhookURL))
	}
	if cfg.SocialWebhookURL != "" {
		social := webhook(cfg.SocialWebhookURL)
		for _, ch := range []model.Channel{
			model.ChannelFacebook, model.ChannelInstagram, model.ChannelLinkedIn,
			model.ChannelYouTube, model.ChannelPinterest,
		} {
			reg.Register(ch, social)
		}
	}
	return reg
}

// StartWorker subscribes the lifecycle manager to post_due and runs the poller until ctx ends.
func (a *App) StartWorker(ctx context.Context, interval time.Duration, log logrus.FieldLogger) error {
	if err := queue.StartPostDueSubscriber(a.Queue, a.Posts, log); err != nil {
		return err
	}
	poller := scheduler.NewPoller(a.Scheduler, a.Queue, interval, log)
	go poller.Run(ctx)
	return nil
}

// Resync closes out posts stuck in sending, then re-registers every scheduled
// post with the scheduler. The memory scheduler starts empty after a restart
// while posts stay scheduled in Postgres. The count is of rescheduled posts.
func (a *App) Resync(ctx context.Context) (int, error) {
	if a.StuckAfter > 0 {
		if _, err := a.Posts.RecoverStuck(ctx, a.StuckAfter); err != nil {
			return 0, fmt.Errorf("recover stuck posts: %w", err)
		}
	}

	posts, err := a.Posts.PostRepo.ListScheduled(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("list scheduled posts: %w", err)
	}
	n := 0
	for _, p := range posts {
		if p.State != model.StateScheduled || p.ScheduledAt == nil {
			continue
		}
		if err := a.Scheduler.Schedule(ctx, p.ID, *p.ScheduledAt); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
