package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogEventCause описывает изменение журнала.
type LogEventCause string

const (
	// LogEventCreated — добавлена запись.
	LogEventCreated LogEventCause = "created"
	// LogEventUpdated — запись изменена.
	LogEventUpdated LogEventCause = "updated"
	// LogEventDeleted — запись удалена.
	LogEventDeleted LogEventCause = "deleted"
)

// Valid сообщает, известна ли причина события.
func (c LogEventCause) Valid() bool {
	switch c {
	case LogEventCreated, LogEventUpdated, LogEventDeleted:
		return true
	}
	return false
}

// LogEvent публикуется подсистемой журнала при изменении записей пользователя.
type LogEvent struct {
	ID         string        `json:"event_id"`
	UserID     string        `json:"user_id"`
	Type       ActivityType  `json:"type,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	Cause      LogEventCause `json:"cause"`
}

// NewLogEvent создаёт событие с новым идентификатором.
func NewLogEvent(userID string, kind ActivityType, cause LogEventCause, at time.Time) LogEvent {
	return LogEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       kind,
		OccurredAt: at.UTC(),
		Cause:      cause,
	}
}

// LogEventQueue описывает очередь событий журнала.
type LogEventQueue interface {
	Publish(ctx context.Context, event LogEvent) error
	Receive(ctx context.Context) (LogEvent, AckFunc, error)
	Close() error
}

// AckFunc подтверждает успешную обработку или запрашивает повторную доставку события.
type AckFunc func(success bool) error
