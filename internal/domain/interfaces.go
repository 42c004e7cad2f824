package domain

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound возвращается, когда пользователь не найден.
var ErrUserNotFound = errors.New("user not found")

// ErrCacheMiss возвращается кешем при отсутствии ключа.
var ErrCacheMiss = errors.New("cache miss")

// RecordProvider отдаёт журнал погружения пользователя.
type RecordProvider interface {
	// Records возвращает сырые записи с моментом не раньше since. Нулевой since означает всё время.
	Records(ctx context.Context, userID string, since time.Time) ([]ActivityRecord, error)
	// DailyTotals возвращает дневные агрегаты, посчитанные в указанном часовом поясе.
	DailyTotals(ctx context.Context, userID, timezone string) (BucketedStats, error)
}

// UserRepo управляет пользователями и их предпочтениями.
type UserRepo interface {
	GetUser(ctx context.Context, userID string) (User, error)
	UpdateTimezone(ctx context.Context, userID, timezone string) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Version возвращает номер поколения статистики пользователя.
	Version(ctx context.Context, userID string) (int64, error)
	// Bump инвалидирует всё закешированное для пользователя.
	Bump(ctx context.Context, userID string) (int64, error)
}
