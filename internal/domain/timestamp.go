package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Timestamp хранит момент записи в UTC. Источник присылает его строкой ISO-8601
// или числом миллисекунд; нераспознанное значение не ломает декодирование,
// а делает запись невалидной.
type Timestamp struct {
	Time time.Time
	Raw  string
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NewTimestamp оборачивает уже разобранный момент.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp разбирает строку. Строки без зоны считаются UTC.
func ParseTimestamp(raw string) Timestamp {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return Timestamp{Time: parsed.UTC(), Raw: raw}
		}
	}
	return Timestamp{Raw: raw}
}

// Valid сообщает, удалось ли разобрать момент.
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

// UnmarshalJSON принимает строку, число миллисекунд или null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			*t = Timestamp{Raw: string(data)}
			return nil
		}
		*t = ParseTimestamp(raw)
		return nil
	}
	var millis float64
	if err := json.Unmarshal(data, &millis); err != nil || math.IsNaN(millis) || math.IsInf(millis, 0) {
		*t = Timestamp{Raw: string(data)}
		return nil
	}
	*t = Timestamp{Time: time.UnixMilli(int64(millis)).UTC(), Raw: string(data)}
	return nil
}

// MarshalJSON отдаёт RFC3339 в UTC, исходную строку для невалидных значений или null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Valid() {
		return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
	}
	if t.Raw != "" {
		return json.Marshal(t.Raw)
	}
	return []byte("null"), nil
}
