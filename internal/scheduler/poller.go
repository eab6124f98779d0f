package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/omnipost-backend/internal/queue"
)

const (
	DefaultPollInterval = time.Second
	DefaultBatchSize    = 100
)

// Poller drains due ids from the index onto the post_due topic.
type Poller struct {
	Source    Scheduler
	Queue     queue.Queue
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time
	Log       logrus.FieldLogger
}

func NewPoller(source Scheduler, q queue.Queue, interval time.Duration, log logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		Source:    source,
		Queue:     q,
		Interval:  interval,
		BatchSize: DefaultBatchSize,
		Now:       time.Now,
		Log:       log,
	}
}

// RunOnce publishes one batch and returns how many ids went out.
// An id that cannot be published is put back at now so the next tick retries it.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	now := p.Now()
	ids, err := p.Source.Due(ctx, now, p.BatchSize)
	if err != nil && len(ids) == 0 {
		return 0, err
	}
	if err != nil {
		p.Log.WithError(err).Warn("partial due batch")
	}

	published := 0
	for _, id := range ids {
		if perr := p.Queue.Publish(queue.TopicPostDue, id); perr != nil {
			p.Log.WithError(perr).WithField("post_id", id).Error("failed to publish due post")
			if serr := p.Source.Schedule(ctx, id, now); serr != nil {
				p.Log.WithError(serr).WithField("post_id", id).Error("failed to restore due post")
			}
			continue
		}
		published++
	}
	if published > 0 {
		p.Log.WithField("count", published).Info("published due posts")
	}
	return published, nil
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Log.WithField("interval", p.Interval.String()).Info("scheduler poller started")
	for {
		select {
		case <-ctx.Done():
			p.Log.Info("scheduler poller stopped")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.Log.WithError(err).Error("poll failed")
			}
		}
	}
}
