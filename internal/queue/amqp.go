package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
)

const retryHeader = "x-retry-count"

// AMQPQueue implements Queue on RabbitMQ with one durable queue per topic.
// Deliveries are acked manually; a failed job is republished with an incremented
// retry header until maxRetries is reached. Up to prefetch deliveries of a topic
// are handled concurrently.
type AMQPQueue struct {
	conn       *amqp.Connection
	pubCh      *amqp.Channel
	pubMu      sync.Mutex
	log        logrus.FieldLogger
	maxRetries int
	prefetch   int
	declared   map[string]bool
}

func NewAMQPQueue(url string, log logrus.FieldLogger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &AMQPQueue{
		conn:       conn,
		pubCh:      ch,
		log:        log,
		maxRetries: 3,
		prefetch:   10,
		declared:   make(map[string]bool),
	}, nil
}

func declare(ch *amqp.Channel, topic string) error {
	_, err := ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	return err
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	return q.publish(topic, body, 0)
}

func (q *AMQPQueue) publish(topic string, body []byte, retries int) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()

	if !q.declared[topic] {
		if err := declare(q.pubCh, topic); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", topic, err)
		}
		q.declared[topic] = true
	}
	return q.pubCh.Publish(
		"",    // exchange
		topic, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{retryHeader: int32(retries)},
			Body:         body,
		},
	)
}

// Subscribe starts a consumer goroutine on its own channel.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declare(ch, topic); err != nil {
		ch.Close()
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	if err := ch.Qos(q.prefetch, 0, false); err != nil {
		ch.Close()
		return err
	}
	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		defer ch.Close()
		q.consume(topic, msgs, handler)
	}()
	return nil
}

// consume runs handler for each delivery in its own goroutine, at most prefetch
// at a time, and returns once msgs is closed and every handler has finished.
func (q *AMQPQueue) consume(topic string, msgs <-chan amqp.Delivery, handler func(payload any) error) {
	var g errgroup.Group
	g.SetLimit(max(q.prefetch, 1))
	for d := range msgs {
		g.Go(func() error {
			q.handle(topic, d, handler)
			return nil
		})
	}
	_ = g.Wait()
}

func (q *AMQPQueue) handle(topic string, d amqp.Delivery, handler func(payload any) error) {
	log := q.log.WithField("topic", topic)

	var payload any
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		log.WithError(err).Warn("invalid job, dropping")
		_ = d.Ack(false)
		return
	}

	if err := handler(payload); err != nil {
		retries := retryCount(d.Headers)
		log = log.WithError(err).WithField("attempt", retries+1)
		if retries < q.maxRetries {
			if perr := q.publish(topic, d.Body, retries+1); perr != nil {
				log.WithError(perr).Error("requeue failed")
				_ = d.Nack(false, true)
				return
			}
			log.Warn("job failed, requeued")
		} else {
			log.Error("job permanently failed")
		}
	}
	_ = d.Ack(false)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (q *AMQPQueue) Close() error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	if err := q.pubCh.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
