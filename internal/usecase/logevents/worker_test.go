package logevents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"immersion-stats/internal/domain"
)

type fakeInvalidator struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (f *fakeInvalidator) Invalidate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return f.err
}

type fakeQueue struct {
	mu     sync.Mutex
	events []domain.LogEvent
	acks   []bool
	cancel context.CancelFunc
}

func (q *fakeQueue) Publish(_ context.Context, event domain.LogEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *fakeQueue) Receive(ctx context.Context) (domain.LogEvent, domain.AckFunc, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		q.cancel()
		return domain.LogEvent{}, nil, context.Canceled
	}
	event := q.events[0]
	q.events = q.events[1:]
	return event, func(success bool) error {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.acks = append(q.acks, success)
		return nil
	}, nil
}

func (q *fakeQueue) Close() error { return nil }

func TestRunInvalidatesEveryUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := &fakeQueue{cancel: cancel}
	at := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, queue.Publish(ctx, domain.NewLogEvent("u1", domain.ActivityReading, domain.LogEventCreated, at)))
	require.NoError(t, queue.Publish(ctx, domain.LogEvent{ID: "bad", Cause: domain.LogEventDeleted}))
	require.NoError(t, queue.Publish(ctx, domain.NewLogEvent("u2", domain.ActivityAnime, domain.LogEventDeleted, at)))

	stats := &fakeInvalidator{}
	NewWorker(queue, stats, zerolog.Nop()).Run(ctx)

	require.Equal(t, []string{"u1", "u2"}, stats.users)
	require.Equal(t, []bool{true, true, true}, queue.acks)
}

func TestHandleRequeuesOnInvalidationFailure(t *testing.T) {
	stats := &fakeInvalidator{err: errors.New("redis down")}
	w := NewWorker(&fakeQueue{}, stats, zerolog.Nop())

	var acked []bool
	ok := w.Handle(context.Background(), domain.LogEvent{ID: "e1", UserID: "u1", Cause: domain.LogEventUpdated}, func(success bool) error {
		acked = append(acked, success)
		return nil
	})
	require.False(t, ok)
	require.Equal(t, []bool{false}, acked)
}

func TestHandleSkipsUnknownCause(t *testing.T) {
	stats := &fakeInvalidator{}
	w := NewWorker(&fakeQueue{}, stats, zerolog.Nop())

	var acked []bool
	ok := w.Handle(context.Background(), domain.LogEvent{ID: "e1", UserID: "u1", Cause: "merged"}, func(success bool) error {
		acked = append(acked, success)
		return nil
	})
	require.True(t, ok)
	require.Equal(t, []bool{true}, acked)
	require.Empty(t, stats.users)
}
