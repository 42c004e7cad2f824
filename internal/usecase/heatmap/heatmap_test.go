package heatmap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"immersion-stats/internal/domain"
)

func at(ts string, xp float64) domain.ActivityRecord {
	return domain.ActivityRecord{TimestampUTC: domain.ParseTimestamp(ts), Type: domain.ActivityReading, XP: xp}
}

func TestBinWindowIsFixedAndAscending(t *testing.T) {
	reference := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	for _, tz := range []string{"UTC", "Asia/Tokyo", "America/Los_Angeles", "Bad/Zone"} {
		res := Bin(nil, tz, reference)
		require.Len(t, res.Days, WindowDays, tz)
		for i := 1; i < len(res.Days); i++ {
			require.Less(t, res.Days[i-1].Date, res.Days[i].Date)
		}
		require.Len(t, res.Weeks, 24)
	}

	require.Equal(t, "2024-03-10", Bin(nil, "UTC", reference).Days[WindowDays-1].Date)
	require.Equal(t, "2024-03-11", Bin(nil, "Asia/Tokyo", reference).Days[WindowDays-1].Date)
	require.Equal(t, "2023-09-25", Bin(nil, "UTC", reference).Days[0].Date)
}

func TestSingleRecordToday(t *testing.T) {
	reference := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	res := Bin([]domain.ActivityRecord{at("2024-03-10T09:00:00Z", 100)}, "UTC", reference)

	require.Equal(t, 100.0, res.MaxDailyXP)
	for _, day := range res.Days[:WindowDays-1] {
		require.Zero(t, day.Level, day.Date)
	}
	require.Equal(t, 4, res.Days[WindowDays-1].Level)
}

func TestRecordsOutsideWindowIgnored(t *testing.T) {
	reference := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	res := Bin([]domain.ActivityRecord{
		at("2023-09-24T23:59:59Z", 500),
		at("2023-09-25T00:00:00Z", 10),
		at("2024-03-11T00:00:00Z", 900),
		at("garbage", 1),
	}, "UTC", reference)
	require.Equal(t, 10.0, res.MaxDailyXP)
	require.Equal(t, 10.0, res.Days[0].TotalXP)
	require.Equal(t, 1, res.Skipped)
}

func TestLevelMonotonic(t *testing.T) {
	maxDaily := 200.0
	prev := 0
	for xp := 1.0; xp <= maxDaily; xp++ {
		level := Level(xp, maxDaily)
		require.GreaterOrEqual(t, level, prev, "xp=%v", xp)
		require.GreaterOrEqual(t, level, 1)
		prev = level
	}
	require.Equal(t, 0, Level(0, maxDaily))
	require.Equal(t, 1, Level(5, 0))
	require.Equal(t, 2, Level(60, maxDaily))
	require.Equal(t, 3, Level(110, maxDaily))
	require.Equal(t, 4, Level(160, maxDaily))
}

func TestStreaks(t *testing.T) {
	reference := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	records := []domain.ActivityRecord{
		at("2024-03-01T10:00:00Z", 5),
		at("2024-03-02T10:00:00Z", 5),
		at("2024-03-03T10:00:00Z", 5),
		at("2024-03-04T10:00:00Z", 5),
		at("2024-03-08T10:00:00Z", 5),
		at("2024-03-09T10:00:00Z", 5),
	}
	streak := Streaks(Bin(records, "UTC", reference))
	require.Equal(t, Streak{Current: 2, Longest: 4, ActiveDays: 6}, streak)

	records = append(records, at("2024-03-10T01:00:00Z", 1))
	streak = Streaks(Bin(records, "UTC", reference))
	require.Equal(t, 3, streak.Current)

	streak = Streaks(Bin(records[:4], "UTC", reference))
	require.Zero(t, streak.Current)
	require.Equal(t, 4, streak.Longest)
}

func TestBinPreAggregated(t *testing.T) {
	source := domain.PreAggregatedSource{Stats: domain.BucketedStats{Days: []domain.DailyTotal{
		{Date: "2024-03-10", Type: domain.ActivityAnime, Measures: domain.Measures{XP: 30}},
		{Date: "2024-03-10", Type: domain.ActivityReading, Measures: domain.Measures{XP: 20}},
	}}}
	res := BinSource(source, "UTC", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	require.Equal(t, 50.0, res.Days[WindowDays-1].TotalXP)
}
