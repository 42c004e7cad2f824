package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
)

// RabbitLogEventQueue реализует очередь событий журнала через AMQP.
type RabbitLogEventQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.LogEventQueue = (*RabbitLogEventQueue)(nil)

// NewRabbitLogEventQueue подключается к брокеру и объявляет долговечную очередь.
func NewRabbitLogEventQueue(amqpURL, queue string) (*RabbitLogEventQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	const prefetch = 16
	if err := channel.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitLogEventQueue{conn: conn, channel: channel, queue: queue}, nil
}

// Publish публикует событие в очередь.
func (q *RabbitLogEventQueue) Publish(ctx context.Context, event domain.LogEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.channel.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие. Подтверждение и отказ с повторной доставкой выполняет AckFunc.
func (q *RabbitLogEventQueue) Receive(ctx context.Context) (domain.LogEvent, domain.AckFunc, error) {
	deliveries, err := q.consume()
	if err != nil {
		return domain.LogEvent{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.LogEvent{}, nil, ctx.Err()
	case delivery, ok := <-deliveries:
		if !ok {
			return domain.LogEvent{}, nil, errors.New("rabbitmq: delivery channel closed")
		}
		event, err := decodeEvent(delivery.Body)
		if err != nil {
			// Нечитаемое сообщение не возвращается в очередь.
			_ = delivery.Nack(false, false)
			return domain.LogEvent{}, func(bool) error { return nil }, err
		}
		ack := func(success bool) error {
			if success {
				return delivery.Ack(false)
			}
			return delivery.Nack(false, !delivery.Redelivered)
		}
		return event, ack, nil
	}
}

func (q *RabbitLogEventQueue) consume() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.channel.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}

// Close закрывает канал и соединение.
func (q *RabbitLogEventQueue) Close() error {
	chErr := q.channel.Close()
	connErr := q.conn.Close()
	return errors.Join(chErr, connErr)
}
