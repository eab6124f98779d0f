package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// TopicPostDue carries ids of posts whose scheduled time has come.
const TopicPostDue = "post_due"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers jobs to in-process subscribers with retry and backoff.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]func(payload any) error
	log        logrus.FieldLogger
	maxRetries int
	backoff    time.Duration
	wg         sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log logrus.FieldLogger) *InMemoryQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		log:        log,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
}

// WithRetry overrides the retry policy.
func (q *InMemoryQueue) WithRetry(maxRetries int, backoff time.Duration) *InMemoryQueue {
	q.maxRetries = maxRetries
	q.backoff = backoff
	return q
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Topic      string
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Topic: topic, Payload: payload, MaxRetries: q.maxRetries}
		q.wg.Add(1)
		go q.processJob(handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()
	log := q.log.WithFields(logrus.Fields{"topic": job.Topic, "payload": job.Payload})

	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			log.Debug("job processed")
			return
		}

		job.RetryCount++
		log.WithError(err).WithField("attempt", job.RetryCount).Warn("job failed")

		if job.RetryCount > job.MaxRetries {
			log.WithField("attempts", job.RetryCount).Error("job permanently failed")
			return
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has settled.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// DueHandler receives due post ids.
type DueHandler interface {
	DueForSend(ctx context.Context, postID string) error
}

// StartPostDueSubscriber wires the post_due topic to the lifecycle manager.
func StartPostDueSubscriber(q Queue, handler DueHandler, log logrus.FieldLogger) error {
	err := q.Subscribe(TopicPostDue, func(payload any) error {
		postID, ok := payload.(string)
		if !ok || postID == "" {
			log.WithField("payload", payload).Warn("invalid post_due payload, expected post id")
			return nil
		}
		log.WithField("post_id", postID).Debug("processing due post")
		return handler.DueForSend(context.Background(), postID)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicPostDue, err)
	}
	return nil
}
