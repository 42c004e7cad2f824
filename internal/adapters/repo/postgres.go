package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
	"immersion-stats/internal/usecase/tzconv"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo       = (*Postgres)(nil)
	_ domain.RecordProvider = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetUser реализует domain.UserRepo.
func (p *Postgres) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		user     domain.User
		username sql.NullString
		timezone sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, username, timezone, created_at, updated_at
FROM users
WHERE id = $1
`, userID).Scan(&user.ID, &username, &timezone, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "get_user", "users", start, nil)
		return domain.User{}, domain.ErrUserNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "get_user", "users", start, err)
	if err != nil {
		return domain.User{}, err
	}
	user.Username = username.String
	user.Timezone = timezone.String
	return user, nil
}

// UpdateTimezone реализует domain.UserRepo.
func (p *Postgres) UpdateTimezone(ctx context.Context, userID, timezone string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE users SET timezone = NULLIF($2, ''), updated_at = now()
WHERE id = $1
`, userID, strings.TrimSpace(timezone))
	metrics.ObserveNetworkRequest("postgres", "update_timezone", "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Records реализует domain.RecordProvider.
func (p *Postgres) Records(ctx context.Context, userID string, since time.Time) ([]domain.ActivityRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, type, occurred_at, xp, minutes, characters, pages, episodes
FROM immersion_logs
WHERE user_id = $1 AND ($2::timestamptz IS NULL OR occurred_at >= $2)
ORDER BY occurred_at
`, userID, nullTime(since))
	metrics.ObserveNetworkRequest("postgres", "list_records", "immersion_logs", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ActivityRecord
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.Type, &row.OccurredAt, &row.XP, &row.Minutes, &row.Characters, &row.Pages, &row.Episodes); err != nil {
			return nil, fmt.Errorf("чтение записи журнала: %w", err)
		}
		records = append(records, row.toDomain())
	}
	return records, rows.Err()
}

// DailyTotals реализует domain.RecordProvider: итоги по локальным дням считает Postgres.
func (p *Postgres) DailyTotals(ctx context.Context, userID, timezone string) (domain.BucketedStats, error) {
	zone, err := tzconv.Normalize(timezone)
	if err != nil {
		return domain.BucketedStats{}, err
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT to_char((occurred_at AT TIME ZONE $2)::date, 'YYYY-MM-DD') AS day,
       type,
       SUM(GREATEST(xp, 0)),
       SUM(GREATEST(COALESCE(minutes, 0), 0)),
       SUM(GREATEST(COALESCE(characters, 0), 0)),
       SUM(GREATEST(COALESCE(pages, 0), 0)),
       SUM(GREATEST(COALESCE(episodes, 0), 0)),
       COUNT(*)
FROM immersion_logs
WHERE user_id = $1
GROUP BY 1, 2
ORDER BY 1, 2
`, userID, zone)
	metrics.ObserveNetworkRequest("postgres", "daily_totals", "immersion_logs", start, err)
	if err != nil {
		return domain.BucketedStats{}, err
	}
	defer rows.Close()

	stats := domain.BucketedStats{Timezone: zone}
	for rows.Next() {
		var (
			day   domain.DailyTotal
			kind  string
			count int64
		)
		if err := rows.Scan(&day.Date, &kind, &day.XP, &day.Minutes, &day.Characters, &day.Pages, &day.Episodes, &count); err != nil {
			return domain.BucketedStats{}, fmt.Errorf("чтение дневного итога: %w", err)
		}
		day.Type = domain.ParseActivityType(kind)
		day.Count = int(count)
		stats.Days = append(stats.Days, day)
	}
	return stats, rows.Err()
}

type recordRow struct {
	ID         string
	UserID     string
	Type       string
	OccurredAt time.Time
	XP         sql.NullFloat64
	Minutes    sql.NullFloat64
	Characters sql.NullFloat64
	Pages      sql.NullFloat64
	Episodes   sql.NullFloat64
}

func (r recordRow) toDomain() domain.ActivityRecord {
	return domain.ActivityRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		TimestampUTC: domain.NewTimestamp(r.OccurredAt),
		Type:         domain.ParseActivityType(r.Type),
		XP:           r.XP.Float64,
		Minutes:      r.Minutes.Float64,
		Characters:   r.Characters.Float64,
		Pages:        r.Pages.Float64,
		Episodes:     r.Episodes.Float64,
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
