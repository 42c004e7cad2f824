package preferences

import (
	"context"
	"fmt"
	"time"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/tzconv"
)

// Invalidator сбрасывает закешированную статистику пользователя.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Service отвечает за настройки пользователя.
type Service struct {
	users domain.UserRepo
	stats Invalidator
}

// NewService создаёт сервис. stats может быть nil.
func NewService(users domain.UserRepo, stats Invalidator) *Service {
	return &Service{users: users, stats: stats}
}

// Timezone возвращает сохранённый часовой пояс пользователя или UTC.
func (s *Service) Timezone(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("получение пользователя: %w", err)
	}
	if user.Timezone == "" {
		return tzconv.UTC, nil
	}
	return user.Timezone, nil
}

// UpdateTimezone проверяет и сохраняет часовой пояс пользователя в каноничном виде.
func (s *Service) UpdateTimezone(ctx context.Context, userID, timezone string) (string, error) {
	normalized, err := tzconv.Normalize(timezone)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return "", fmt.Errorf("получение пользователя: %w", err)
	}
	if err := s.users.UpdateTimezone(ctx, userID, normalized); err != nil {
		return "", fmt.Errorf("обновление часового пояса: %w", err)
	}
	if s.stats != nil {
		if err := s.stats.Invalidate(ctx, userID); err != nil {
			return normalized, err
		}
	}
	return normalized, nil
}

// Timezones возвращает список поясов для выбора на момент at.
func (s *Service) Timezones(at time.Time) []tzconv.Zone {
	return tzconv.List(at)
}
