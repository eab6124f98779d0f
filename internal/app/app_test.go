package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/publisher"
	"github.com/unclebandit/omnipost-backend/internal/queue"
	"github.com/unclebandit/omnipost-backend/internal/scheduler"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		MediaDir:       filepath.Join(t.TempDir(), "media"),
		MediaBaseURL:   "http://localhost/media/files",
		FanOutLimit:    4,
		PublishTimeout: time.Second,
	}
}

func TestBuildInMemory(t *testing.T) {
	log, _ := test.NewNullLogger()
	a, err := Build(context.Background(), memoryConfig(t), log, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.IsType(t, &scheduler.MemoryScheduler{}, a.Scheduler)
	assert.IsType(t, &queue.InMemoryQueue{}, a.Queue)
	assert.Equal(t, 4, a.Posts.FanOutLimit)
	assert.Same(t, a.Templates, a.Posts.Templates)
}

func TestPublishersByConfig(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := memoryConfig(t)
	cfg.SMTPHost = "smtp.example.com"
	cfg.SMSWebhookURL = "http://sms.example.com/send"
	cfg.SocialWebhookURL = "http://social.example.com/post"

	reg := Publishers(cfg, log)

	email, err := reg.For(model.ChannelEmail)
	require.NoError(t, err)
	assert.IsType(t, &publisher.EmailPublisher{}, email)

	sms, err := reg.For(model.ChannelSMS)
	require.NoError(t, err)
	assert.Equal(t, "http://sms.example.com/send", sms.(*publisher.WebhookPublisher).URL)

	yt, err := reg.For(model.ChannelYouTube)
	require.NoError(t, err)
	assert.Equal(t, "http://social.example.com/post", yt.(*publisher.WebhookPublisher).URL)

	wa, err := reg.For(model.ChannelWhatsApp)
	require.NoError(t, err)
	assert.IsType(t, &publisher.LogPublisher{}, wa)
}

func TestWorkerSendsScheduledPost(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, memoryConfig(t), log, nil)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.StartWorker(ctx, 10*time.Millisecond, log))

	p, err := a.Posts.CreateDraft(ctx, service.DraftInput{
		Channel: model.ChannelFacebook,
		Subject: "Launch",
		Body:    "We are live",
	})
	require.NoError(t, err)

	at := time.Now().Add(50 * time.Millisecond)
	_, err = a.Posts.ScheduleOrSend(ctx, p.ID, &at)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := a.Posts.Get(ctx, p.ID)
		return err == nil && got.State == model.StateSent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResyncRestoresSchedule(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()
	a, err := Build(ctx, memoryConfig(t), log, nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Posts.CreateDraft(ctx, service.DraftInput{Channel: model.ChannelLinkedIn, Subject: "Hiring", Body: "Join us"})
	require.NoError(t, err)
	at := time.Now().Add(time.Hour)
	_, err = a.Posts.ScheduleOrSend(ctx, p.ID, &at)
	require.NoError(t, err)

	a.Scheduler = scheduler.NewMemoryScheduler()
	n, err := a.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, a.Scheduler.(*scheduler.MemoryScheduler).Pending())
}

func TestResyncFailsStuckSends(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()
	cfg := memoryConfig(t)
	cfg.StuckAfter = 10 * time.Minute
	a, err := Build(ctx, cfg, log, nil)
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Posts.CreateDraft(ctx, service.DraftInput{Channel: model.ChannelLinkedIn, Subject: "Hiring", Body: "Join us"})
	require.NoError(t, err)
	p.State = model.StateSending
	p.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, a.Posts.PostRepo.UpdateIfState(ctx, p, model.StateDraft))

	n, err := a.Resync(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := a.Posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, got.State)
	assert.Equal(t, service.ReasonSendInterrupted, got.SendResults[model.SelfTarget].Reason)
}
