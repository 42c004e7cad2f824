package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"immersion-stats/internal/domain"
)

// ErrInvalidFilter возвращается для некорректных параметров запроса статистики.
var ErrInvalidFilter = errors.New("invalid filter")

// MediaAll означает все виды активности.
const MediaAll = "all"

// MaxCustomRangeYears ограничивает длину произвольного периода.
const MaxCustomRangeYears = 50

// RawFilter — параметры в том виде, в каком они пришли от клиента.
type RawFilter struct {
	Timeframe string
	Metric    string
	Type      string
	Timezone  string
	Start     string
	End       string
	Locale    string
}

// Filter — проверенные параметры расчёта.
type Filter struct {
	Timeframe domain.Timeframe
	Metric    domain.Metric
	// MediaType пуст для всех видов активности.
	MediaType domain.ActivityType
	Timezone  string
	Start     time.Time
	End       time.Time
	Locale    string
}

// ParseFilter проверяет параметры. Пустые значения заменяются значениями по умолчанию.
func ParseFilter(raw RawFilter) (Filter, error) {
	timeframe, err := domain.ParseTimeframe(raw.Timeframe)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: timeframe %q", ErrInvalidFilter, raw.Timeframe)
	}
	metric, err := domain.ParseMetric(raw.Metric)
	if err != nil {
		return Filter{}, fmt.Errorf("%w: metric %q", ErrInvalidFilter, raw.Metric)
	}
	f := Filter{
		Timeframe: timeframe,
		Metric:    metric,
		Timezone:  strings.TrimSpace(raw.Timezone),
		Locale:    strings.TrimSpace(raw.Locale),
	}

	media := strings.ToLower(strings.TrimSpace(raw.Type))
	if media != "" && media != MediaAll {
		kind := domain.ParseActivityType(media)
		if kind == domain.ActivityOther && media != string(domain.ActivityOther) {
			return Filter{}, fmt.Errorf("%w: type %q", ErrInvalidFilter, raw.Type)
		}
		f.MediaType = kind
	}

	if timeframe != domain.TimeframeCustom {
		return f, nil
	}
	if f.Start, err = parseDay(raw.Start); err != nil {
		return Filter{}, fmt.Errorf("%w: start %q", ErrInvalidFilter, raw.Start)
	}
	if f.End, err = parseDay(raw.End); err != nil {
		return Filter{}, fmt.Errorf("%w: end %q", ErrInvalidFilter, raw.End)
	}
	if f.End.Before(f.Start) {
		return Filter{}, fmt.Errorf("%w: end before start", ErrInvalidFilter)
	}
	if f.End.After(f.Start.AddDate(MaxCustomRangeYears, 0, 0)) {
		return Filter{}, fmt.Errorf("%w: range longer than %d years", ErrInvalidFilter, MaxCustomRangeYears)
	}
	return f, nil
}

func parseDay(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

// cacheKey возвращает часть ключа кеша, однозначно описывающую фильтр.
func (f Filter) cacheKey() string {
	parts := []string{
		string(f.Timeframe),
		string(f.Metric),
		string(f.MediaType),
		f.Timezone,
		f.Locale,
	}
	if f.Timeframe == domain.TimeframeCustom {
		parts = append(parts, f.Start.Format("2006-01-02"), f.End.Format("2006-01-02"))
	}
	return strings.Join(parts, "|")
}
