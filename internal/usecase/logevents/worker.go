// Package logevents обрабатывает события изменения журнала и сбрасывает кеш статистики.
package logevents

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
)

// Invalidator сбрасывает закешированную статистику пользователя.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Worker читает очередь событий журнала.
type Worker struct {
	log     zerolog.Logger
	queue   domain.LogEventQueue
	stats   Invalidator
	backoff time.Duration
}

// NewWorker создаёт обработчик очереди.
func NewWorker(queue domain.LogEventQueue, stats Invalidator, logger zerolog.Logger) *Worker {
	return &Worker{
		log:     logger.With().Str("component", "logevents").Logger(),
		queue:   queue,
		stats:   stats,
		backoff: time.Second,
	}
}

// Run обрабатывает события, пока не отменён ctx.
func (w *Worker) Run(ctx context.Context) {
	for {
		event, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("logevents: ошибка чтения очереди")
			if !w.pause(ctx) {
				return
			}
			continue
		}
		if !w.Handle(ctx, event, ack) && !w.pause(ctx) {
			return
		}
	}
}

// Handle обрабатывает одно событие и подтверждает его. Возвращает false, если событие
// возвращено в очередь.
func (w *Worker) Handle(ctx context.Context, event domain.LogEvent, ack domain.AckFunc) bool {
	eventLog := w.log.With().
		Str("event_id", event.ID).
		Str("user_id", event.UserID).
		Str("cause", string(event.Cause)).
		Logger()

	if event.UserID == "" || (event.Cause != "" && !event.Cause.Valid()) {
		eventLog.Warn().Msg("logevents: некорректное событие, подтверждаем и пропускаем")
		metrics.IncLogEvent("skipped")
		if err := ack(true); err != nil {
			eventLog.Error().Err(err).Msg("logevents: не удалось подтвердить некорректное событие")
		}
		return true
	}

	if err := w.stats.Invalidate(ctx, event.UserID); err != nil {
		eventLog.Warn().Err(err).Msg("logevents: не удалось сбросить кеш, повторим позже")
		metrics.IncLogEvent("retry")
		if ackErr := ack(false); ackErr != nil {
			eventLog.Error().Err(ackErr).Msg("logevents: не удалось вернуть событие в очередь")
		}
		return false
	}

	metrics.IncLogEvent("processed")
	if err := ack(true); err != nil {
		eventLog.Error().Err(err).Msg("logevents: не удалось подтвердить событие")
	}
	eventLog.Debug().Msg("logevents: кеш статистики сброшен")
	return true
}

func (w *Worker) pause(ctx context.Context) bool {
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
