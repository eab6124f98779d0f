package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/omnipost-backend/internal/app"
	"github.com/unclebandit/omnipost-backend/internal/config"
	"github.com/unclebandit/omnipost-backend/internal/model"
	"github.com/unclebandit/omnipost-backend/internal/publisher"
	"github.com/unclebandit/omnipost-backend/internal/repository"
	"github.com/unclebandit/omnipost-backend/internal/service"
)

func TestWorker(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := &config.Config{
		MediaDir:       filepath.Join(t.TempDir(), "media"),
		MediaBaseURL:   "http://localhost/media/files",
		FanOutLimit:    4,
		PublishTimeout: time.Second,
	}
	a, err := app.Build(context.Background(), cfg, log, nil)
	require.NoError(t, err)
	defer a.Close()

	directory := repository.NewMemoryRecipientDirectory(
		model.Recipient{ID: "c1", Name: "Alice", Phone: "+254700000001"},
		model.Recipient{ID: "c2", Name: "Bob", Phone: "+254700000002"},
	)
	a.Posts.Recipients = directory

	var mu sync.Mutex
	sent := map[string]string{}
	a.Posts.Publishers = publisher.NewRegistry().Register(model.ChannelSMS, publisher.Func(
		func(_ context.Context, content model.RenderedContent, _ map[string]any, r *model.Recipient) error {
			mu.Lock()
			defer mu.Unlock()
			sent[r.ID] = content.Body
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := a.Posts.CreateDraft(ctx, service.DraftInput{
		Channel:      model.ChannelSMS,
		Body:         "Hi {{name}}, your order shipped",
		RecipientIDs: []string{"c1", "c2"},
	})
	require.NoError(t, err)
	at := time.Now().Add(100 * time.Millisecond)
	_, err = a.Posts.ScheduleOrSend(ctx, p.ID, &at)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- run(ctx, a, 10*time.Millisecond, log) }()

	require.Eventually(t, func() bool {
		got, err := a.Posts.Get(ctx, p.ID)
		return err == nil && got.State == model.StateSent
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "Hi Alice, your order shipped", sent["c1"])
	assert.Equal(t, "Hi Bob, your order shipped", sent["c2"])
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
