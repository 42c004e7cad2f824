package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
)

// RedisLogEventQueue реализует очередь событий журнала на базе Redis lists.
type RedisLogEventQueue struct {
	client *redis.Client
	key    string
}

var _ domain.LogEventQueue = (*RedisLogEventQueue)(nil)

// NewRedisLogEventQueue создаёт очередь по указанному ключу.
func NewRedisLogEventQueue(client *redis.Client, key string) *RedisLogEventQueue {
	return &RedisLogEventQueue{client: client, key: key}
}

// Publish публикует событие в очередь.
func (q *RedisLogEventQueue) Publish(ctx context.Context, event domain.LogEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis_queue", "publish", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push event: %w", err)
	}
	return nil
}

// Receive блокирующе читает событие из очереди. При неуспехе событие возвращается в хвост очереди.
func (q *RedisLogEventQueue) Receive(ctx context.Context) (domain.LogEvent, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.LogEvent{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.LogEvent{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.LogEvent{}, nil, err
		}
		if len(res) != 2 {
			return domain.LogEvent{}, nil, errors.New("redis queue: unexpected response")
		}
		raw := res[1]
		event, err := decodeEvent([]byte(raw))
		if err != nil {
			return domain.LogEvent{}, func(bool) error { return nil }, err
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.RPush(context.Background(), q.key, raw).Err()
		}
		return event, ack, nil
	}
}

// Close ничего не делает: клиент Redis принадлежит вызывающему коду.
func (q *RedisLogEventQueue) Close() error {
	return nil
}

func decodeEvent(payload []byte) (domain.LogEvent, error) {
	var event domain.LogEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.LogEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if event.UserID == "" {
		return domain.LogEvent{}, errors.New("decode event: empty user_id")
	}
	return event, nil
}
