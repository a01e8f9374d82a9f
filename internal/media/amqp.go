package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// DefaultQueueName is the durable queue processing jobs are published to.
const DefaultQueueName = "vidcms.media"

// AMQPQueue publishes processing jobs to RabbitMQ so any instance can pick them up.
type AMQPQueue struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger

	mu sync.Mutex
}

// DialAMQP connects to url and declares the durable queue.
func DialAMQP(url, queue string, logger *slog.Logger) (*AMQPQueue, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPQueue{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Enqueue publishes job as a persistent JSON message.
func (q *AMQPQueue) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ch.Publish("", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Consume feeds deliveries to handle until ctx is cancelled or the channel closes. Messages are
// acknowledged on success; undecodable or failed jobs are rejected without requeue.
func (q *AMQPQueue) Consume(ctx context.Context, handle func(context.Context, Job) error) error {
	q.mu.Lock()
	if err := q.ch.Qos(1, 0, false); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			q.handleDelivery(ctx, d, handle)
		}
	}
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handle func(context.Context, Job) error) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil || job.VideoID == "" {
		q.logger.Error("discarding malformed media job", "error", err)
		_ = d.Reject(false)
		return
	}

	if err := handle(ctx, job); err != nil {
		q.logger.Error("media job failed", "videoId", job.VideoID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// Close tears down the channel and connection.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	chErr := q.ch.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
