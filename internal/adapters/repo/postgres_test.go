package repo

import (
	"database/sql"
	"testing"
	"time"

	"immersion-stats/internal/domain"
)

func TestRecordRowToDomain(t *testing.T) {
	occurred := time.Date(2024, 3, 4, 10, 0, 0, 0, time.FixedZone("JST", 9*3600))
	row := recordRow{
		ID:         "r1",
		UserID:     "u1",
		Type:       "Visual-Novel",
		OccurredAt: occurred,
		XP:         sql.NullFloat64{Float64: 12, Valid: true},
		Characters: sql.NullFloat64{Float64: 3000, Valid: true},
	}
	record := row.toDomain()
	if record.Type != domain.ActivityVN {
		t.Fatalf("ожидали vn, получили %s", record.Type)
	}
	if !record.TimestampUTC.Valid() || record.TimestampUTC.Time.Location() != time.UTC {
		t.Fatalf("ожидали момент в UTC: %+v", record.TimestampUTC)
	}
	if record.TimestampUTC.Time.Hour() != 1 {
		t.Fatalf("ожидали 01:00 UTC, получили %v", record.TimestampUTC.Time)
	}
	if record.Minutes != 0 || record.Characters != 3000 {
		t.Fatalf("неожиданные показатели: %+v", record)
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}).Valid {
		t.Fatalf("нулевой момент должен давать NULL")
	}
	if !nullTime(time.Now()).Valid {
		t.Fatalf("ожидали заполненное значение")
	}
}
