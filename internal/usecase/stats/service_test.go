package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/calendar"
	"immersion-stats/internal/usecase/heatmap"
)

type stubRecords struct {
	records   []domain.ActivityRecord
	daily     domain.BucketedStats
	err       error
	since     time.Time
	calls     int
	dailyZone string
}

func (s *stubRecords) Records(_ context.Context, _ string, since time.Time) ([]domain.ActivityRecord, error) {
	s.calls++
	s.since = since
	return s.records, s.err
}

func (s *stubRecords) DailyTotals(_ context.Context, _ string, timezone string) (domain.BucketedStats, error) {
	s.calls++
	s.dailyZone = timezone
	return s.daily, s.err
}

type stubUsers struct {
	users map[string]domain.User
}

func (s *stubUsers) GetUser(_ context.Context, userID string) (domain.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUsers) UpdateTimezone(_ context.Context, userID, timezone string) error {
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.Timezone = timezone
	s.users[userID] = user
	return nil
}

type memoryCache struct {
	data     map[string][]byte
	versions map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}, versions: map[string]int64{}}
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

func (c *memoryCache) Version(_ context.Context, userID string) (int64, error) {
	return c.versions[userID], nil
}

func (c *memoryCache) Bump(_ context.Context, userID string) (int64, error) {
	c.versions[userID]++
	return c.versions[userID], nil
}

var reference = time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

func rec(ts string, kind domain.ActivityType, xp, minutes, chars float64) domain.ActivityRecord {
	return domain.ActivityRecord{TimestampUTC: domain.ParseTimestamp(ts), Type: kind, XP: xp, Minutes: minutes, Characters: chars}
}

func newTestService(records *stubRecords, cache domain.Cache, cfg Config) *Service {
	users := &stubUsers{users: map[string]domain.User{
		"u1": {ID: "u1", Timezone: "Asia/Tokyo"},
		"u2": {ID: "u2"},
	}}
	return NewService(records, users, cache, calendar.FixedClock(reference), cfg, zerolog.Nop())
}

func TestProgressWeek(t *testing.T) {
	records := &stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-04T10:00Z", domain.ActivityReading, 50, 0, 0),
		rec("2024-03-04T10:00Z", domain.ActivityReading, 30, 0, 0),
		rec("2024-03-05T10:00Z", domain.ActivityAnime, 12, 0, 0),
		rec("oops", domain.ActivityAnime, 12, 0, 0),
	}}
	service := newTestService(records, nil, Config{})

	f, err := ParseFilter(RawFilter{Timeframe: "week", Timezone: "UTC"})
	require.NoError(t, err)
	out, err := service.Progress(context.Background(), "u1", f)
	require.NoError(t, err)

	require.Equal(t, domain.GranularityDayOfWeek, out.Granularity)
	require.Equal(t, "UTC", out.Timezone)
	require.Equal(t, 1, out.Skipped)
	require.Equal(t, []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}, out.Labels)
	require.Len(t, out.Series, 2)
	require.Equal(t, []float64{0, 80, 0, 0, 0, 0, 0}, out.Series[0].Values)
	require.Equal(t, []float64{0, 0, 12, 0, 0, 0, 0}, out.Series[1].Values)
	require.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), records.since)
}

func TestProgressSingleTypeWithoutData(t *testing.T) {
	service := newTestService(&stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-04T10:00Z", domain.ActivityReading, 50, 0, 0),
	}}, nil, Config{})
	f, err := ParseFilter(RawFilter{Timeframe: "today", Type: "manga"})
	require.NoError(t, err)

	out, err := service.Progress(context.Background(), "u1", f)
	require.NoError(t, err)
	require.Len(t, out.Labels, 24)
	require.Len(t, out.Series, 1)
	require.Equal(t, "Manga", out.Series[0].Name)
	require.Len(t, out.Series[0].Values, 24)
}

func TestTimezoneResolutionOrder(t *testing.T) {
	records := &stubRecords{records: []domain.ActivityRecord{rec("2024-03-05T23:30:00Z", domain.ActivityReading, 5, 0, 0)}}
	service := newTestService(records, nil, Config{DefaultTimezone: "Europe/Berlin"})
	f, err := ParseFilter(RawFilter{Timeframe: "month"})
	require.NoError(t, err)

	out, err := service.Progress(context.Background(), "u1", f)
	require.NoError(t, err)
	require.Equal(t, "Asia/Tokyo", out.Timezone)

	out, err = service.Progress(context.Background(), "u2", f)
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", out.Timezone)

	f.Timezone = "America/Chicago"
	out, err = service.Progress(context.Background(), "u2", f)
	require.NoError(t, err)
	require.Equal(t, "America/Chicago", out.Timezone)

	service = newTestService(records, nil, Config{})
	out, err = service.Progress(context.Background(), "u2", Filter{Timeframe: domain.TimeframeMonth})
	require.NoError(t, err)
	require.Equal(t, "UTC", out.Timezone)
}

func TestInvalidTimezoneFallsBack(t *testing.T) {
	service := newTestService(&stubRecords{}, nil, Config{})
	out, err := service.Progress(context.Background(), "u1", Filter{Timeframe: domain.TimeframeWeek, Timezone: "Moon/Crater"})
	require.NoError(t, err)
	require.True(t, out.TimezoneFallback)
	require.Equal(t, "UTC", out.Timezone)
}

func TestUnknownUser(t *testing.T) {
	service := newTestService(&stubRecords{}, nil, Config{})
	_, err := service.Progress(context.Background(), "ghost", Filter{Timeframe: domain.TimeframeWeek})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSourceFailure(t *testing.T) {
	service := newTestService(&stubRecords{err: errors.New("connection refused")}, nil, Config{})
	_, err := service.Heatmap(context.Background(), "u1", "")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestSpeedCarriesForward(t *testing.T) {
	service := newTestService(&stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-04T10:00:00Z", domain.ActivityReading, 0, 60, 6000),
		rec("2024-03-06T10:00:00Z", domain.ActivityReading, 0, 30, 6000),
	}}, nil, Config{})

	out, err := service.Speed(context.Background(), "u2", Filter{Timeframe: domain.TimeframeWeek, Metric: domain.MetricExperience})
	require.NoError(t, err)
	require.Equal(t, domain.MetricCharactersPerHour, out.Metric)
	require.Equal(t, []float64{0, 6000, 6000, 12000, 12000, 12000, 12000}, out.Series[0].Values)
}

func TestSummary(t *testing.T) {
	service := newTestService(&stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-04T10:00:00Z", domain.ActivityReading, 10, 60, 6000),
		rec("2024-03-05T10:00:00Z", domain.ActivityAnime, 20, 24, 0),
		rec("2024-02-05T10:00:00Z", domain.ActivityAnime, 99, 24, 0),
	}}, nil, Config{})

	out, err := service.Summary(context.Background(), "u2", Filter{Timeframe: domain.TimeframeMonth})
	require.NoError(t, err)
	require.Equal(t, 30.0, out.Overall.XP)
	require.Equal(t, 84.0, out.Overall.Minutes)
	require.Equal(t, 2, out.Overall.Count)
	require.Len(t, out.ByType, 2)
	require.Equal(t, domain.ActivityReading, out.ByType[0].Type)
	require.Equal(t, 6000.0, out.ByType[0].CharactersPerHour)
}

func TestSummaryTodayWithDailyTotals(t *testing.T) {
	records := &stubRecords{daily: domain.BucketedStats{Days: []domain.DailyTotal{
		{Date: "2024-03-06", Type: domain.ActivityVN, Measures: domain.Measures{XP: 7}, Count: 3},
		{Date: "2024-03-05", Type: domain.ActivityVN, Measures: domain.Measures{XP: 100}, Count: 1},
	}}}
	service := newTestService(records, nil, Config{DailyTotals: true})

	out, err := service.Summary(context.Background(), "u2", Filter{Timeframe: domain.TimeframeToday})
	require.NoError(t, err)
	require.Equal(t, domain.TimeframeToday, out.Timeframe)
	require.Equal(t, 7.0, out.Overall.XP)
	require.Equal(t, 3, out.Overall.Count)
	require.Equal(t, "UTC", records.dailyZone)
}

func TestHeatmap(t *testing.T) {
	service := newTestService(&stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-05T10:00:00Z", domain.ActivityReading, 100, 0, 0),
		rec("2024-03-06T10:00:00Z", domain.ActivityReading, 10, 0, 0),
	}}, nil, Config{})

	out, err := service.Heatmap(context.Background(), "u2", "UTC")
	require.NoError(t, err)
	require.Len(t, out.Days, heatmap.WindowDays)
	require.Equal(t, 100.0, out.MaxDailyXP)
	require.Equal(t, 4, out.Days[heatmap.WindowDays-2].Level)
	require.Equal(t, 1, out.Days[heatmap.WindowDays-1].Level)
	require.Equal(t, heatmap.Streak{Current: 2, Longest: 2, ActiveDays: 2}, out.Streak)
}

func TestCacheIsVersioned(t *testing.T) {
	records := &stubRecords{records: []domain.ActivityRecord{rec("2024-03-04T10:00:00Z", domain.ActivityReading, 10, 0, 0)}}
	cache := newMemoryCache()
	service := newTestService(records, cache, Config{CacheTTL: time.Minute})
	ctx := context.Background()
	f := Filter{Timeframe: domain.TimeframeWeek, Metric: domain.MetricExperience}

	first, err := service.Progress(ctx, "u2", f)
	require.NoError(t, err)
	second, err := service.Progress(ctx, "u2", f)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, records.calls)

	records.records = append(records.records, rec("2024-03-05T10:00:00Z", domain.ActivityReading, 5, 0, 0))
	require.NoError(t, service.Invalidate(ctx, "u2"))
	third, err := service.Progress(ctx, "u2", f)
	require.NoError(t, err)
	require.Equal(t, 2, records.calls)
	require.Equal(t, []float64{0, 10, 5, 0, 0, 0, 0}, third.Series[0].Values)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(RawFilter{})
	require.NoError(t, err)
	require.Equal(t, domain.TimeframeTotal, f.Timeframe)
	require.Equal(t, domain.MetricExperience, f.Metric)
	require.Empty(t, f.MediaType)

	f, err = ParseFilter(RawFilter{Timeframe: "custom", Start: "2024-01-01", End: "2024-01-31", Type: "Visual-Novel"})
	require.NoError(t, err)
	require.Equal(t, domain.ActivityVN, f.MediaType)
	require.Equal(t, 2024, f.End.Year())

	f, err = ParseFilter(RawFilter{Timeframe: "custom", Start: "1970-01-01", End: "2020-01-01"})
	require.NoError(t, err, "ровно пятьдесят лет допустимы")

	bad := []RawFilter{
		{Timeframe: "decade"},
		{Metric: "pages"},
		{Type: "podcast"},
		{Timeframe: "custom", Start: "2024-01-01"},
		{Timeframe: "custom", Start: "2024-02-01", End: "2024-01-01"},
		{Timeframe: "custom", Start: "0001-01-01", End: "9999-12-31"},
		{Timeframe: "custom", Start: "1970-01-01", End: "2020-01-02"},
	}
	for _, raw := range bad {
		_, err := ParseFilter(raw)
		require.ErrorIs(t, err, ErrInvalidFilter, "%+v", raw)
	}
}

type steppedClock struct {
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	return c.now
}

func TestCacheFollowsLocalMidnight(t *testing.T) {
	records := &stubRecords{records: []domain.ActivityRecord{
		rec("2024-03-06T10:00:00Z", domain.ActivityReading, 40, 0, 0),
	}}
	users := &stubUsers{users: map[string]domain.User{"u1": {ID: "u1", Timezone: "Asia/Kolkata"}}}
	// 23:50 по Калькутте 6 марта.
	clock := &steppedClock{now: time.Date(2024, 3, 6, 18, 20, 0, 0, time.UTC)}
	service := NewService(records, users, newMemoryCache(), clock, Config{CacheTTL: time.Hour}, zerolog.Nop())
	ctx := context.Background()

	before, err := service.Heatmap(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, "2024-03-06", before.Days[len(before.Days)-1].Date)

	summaryBefore, err := service.Summary(ctx, "u1", Filter{Timeframe: domain.TimeframeToday})
	require.NoError(t, err)
	require.Equal(t, 40.0, summaryBefore.Overall.XP)

	// 00:10 следующего дня по Калькутте, тот же час UTC.
	clock.now = time.Date(2024, 3, 6, 18, 40, 0, 0, time.UTC)
	after, err := service.Heatmap(ctx, "u1", "")
	require.NoError(t, err)
	require.Equal(t, "2024-03-07", after.Days[len(after.Days)-1].Date)

	summaryAfter, err := service.Summary(ctx, "u1", Filter{Timeframe: domain.TimeframeToday})
	require.NoError(t, err)
	require.Zero(t, summaryAfter.Overall.XP)
}

func TestLocalHourKey(t *testing.T) {
	at := time.Date(2024, 3, 6, 18, 40, 0, 0, time.UTC)
	require.Equal(t, "2024-03-07T00", localHourKey("Asia/Kolkata", at))
	require.Equal(t, "2024-03-06T18", localHourKey("UTC", at))
	require.Equal(t, "2024-03-06T18", localHourKey("Not/AZone", at))
}

func TestDailyTotalsInAnotherZoneFallBackToRecords(t *testing.T) {
	records := &stubRecords{
		records: []domain.ActivityRecord{rec("2024-03-06T10:00:00Z", domain.ActivityReading, 7, 0, 0)},
		daily: domain.BucketedStats{Timezone: "America/New_York", Days: []domain.DailyTotal{
			{Date: "2024-03-06", Type: domain.ActivityReading, Measures: domain.Measures{XP: 999}, Count: 1},
		}},
	}
	service := newTestService(records, nil, Config{DailyTotals: true})

	out, err := service.Summary(context.Background(), "u1", Filter{Timeframe: domain.TimeframeWeek, Timezone: "UTC"})
	require.NoError(t, err)
	require.Equal(t, 7.0, out.Overall.XP)
	require.Equal(t, 2, records.calls)
}
