package preferences

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/tzconv"
)

type stubUsers struct {
	users   map[string]domain.User
	updated string
}

func (s *stubUsers) GetUser(_ context.Context, userID string) (domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUsers) UpdateTimezone(_ context.Context, userID, timezone string) error {
	user := s.users[userID]
	user.Timezone = timezone
	s.users[userID] = user
	s.updated = timezone
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context, string) error {
	c.calls++
	return nil
}

func TestUpdateTimezoneNormalizes(t *testing.T) {
	users := &stubUsers{users: map[string]domain.User{"u1": {ID: "u1"}}}
	inv := &countingInvalidator{}
	service := NewService(users, inv)

	tz, err := service.Timezone(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "UTC", tz)

	normalized, err := service.UpdateTimezone(context.Background(), "u1", "america/new york")
	require.NoError(t, err)
	require.Equal(t, "America/New_York", normalized)
	require.Equal(t, "America/New_York", users.updated)
	require.Equal(t, 1, inv.calls)

	tz, err = service.Timezone(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "America/New_York", tz)
}

func TestUpdateTimezoneRejectsInvalid(t *testing.T) {
	users := &stubUsers{users: map[string]domain.User{"u1": {ID: "u1"}}}
	service := NewService(users, nil)

	_, err := service.UpdateTimezone(context.Background(), "u1", "Atlantis/Capital")
	require.ErrorIs(t, err, tzconv.ErrInvalidTimezone)
	require.Empty(t, users.updated)

	_, err = service.UpdateTimezone(context.Background(), "ghost", "UTC")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestTimezones(t *testing.T) {
	service := NewService(&stubUsers{}, nil)
	zones := service.Timezones(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NotEmpty(t, zones)
	require.Equal(t, "Pacific/Honolulu", zones[0].Name)
}
