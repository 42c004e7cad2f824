package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownMetric возвращается для неизвестной метрики.
var ErrUnknownMetric = errors.New("unknown metric")

// ErrUnknownTimeframe возвращается для неизвестного периода.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Metric выбирает редукцию значения корзины.
type Metric string

const (
	MetricExperience        Metric = "experience"
	MetricMinutes           Metric = "minutes"
	MetricCharactersPerHour Metric = "charactersPerHour"
)

// ParseMetric разбирает метрику; пустая строка означает опыт.
func ParseMetric(raw string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "experience", "xp":
		return MetricExperience, nil
	case "minutes", "time":
		return MetricMinutes, nil
	case "charactersperhour", "chars_per_hour", "speed":
		return MetricCharactersPerHour, nil
	}
	return "", ErrUnknownMetric
}

// IsRate сообщает, является ли метрика скоростью, а не суммой.
func (m Metric) IsRate() bool {
	return m == MetricCharactersPerHour
}

// Timeframe — окно, выбранное пользователем.
type Timeframe string

const (
	TimeframeToday  Timeframe = "today"
	TimeframeWeek   Timeframe = "week"
	TimeframeMonth  Timeframe = "month"
	TimeframeYear   Timeframe = "year"
	TimeframeTotal  Timeframe = "total"
	TimeframeCustom Timeframe = "custom"
)

// ParseTimeframe разбирает период; пустая строка означает всё время.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(raw))); tf {
	case "":
		return TimeframeTotal, nil
	case TimeframeToday, TimeframeWeek, TimeframeMonth, TimeframeYear, TimeframeTotal, TimeframeCustom:
		return tf, nil
	}
	return "", ErrUnknownTimeframe
}

// Granularity — размер временной корзины.
type Granularity string

const (
	GranularityHourOfDay    Granularity = "hourOfDay"
	GranularityDayOfWeek    Granularity = "dayOfWeek"
	GranularityDayOfMonth   Granularity = "dayOfMonth"
	GranularityMonthOfYear  Granularity = "monthOfYear"
	GranularityMonthOfTotal Granularity = "monthOfTotal"
	GranularityDayOfRange   Granularity = "dayOfRange"
	GranularityMonthOfRange Granularity = "monthOfRange"
)

// FixedCardinality сообщает, что порядок корзин каноничен и не зависит от данных.
func (g Granularity) FixedCardinality() bool {
	switch g {
	case GranularityHourOfDay, GranularityDayOfWeek, GranularityMonthOfYear:
		return true
	}
	return false
}

// MonthKeyed сообщает, что ключи корзин имеют вид "YYYY-MM".
func (g Granularity) MonthKeyed() bool {
	switch g {
	case GranularityMonthOfYear, GranularityMonthOfTotal, GranularityMonthOfRange:
		return true
	}
	return false
}

// Bucket — ячейка агрегации для одной единицы времени.
type Bucket struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Measures
	Count int `json:"count"`
}

// Value возвращает значение корзины для выбранной метрики.
func (b Bucket) Value(metric Metric) float64 {
	switch metric {
	case MetricMinutes:
		return b.Minutes
	case MetricCharactersPerHour:
		return b.CharactersPerHour()
	default:
		return b.XP
	}
}

// OrderedBuckets — корзины в каноничном для гранулярности порядке.
type OrderedBuckets struct {
	Granularity Granularity `json:"granularity"`
	Buckets     []Bucket    `json:"buckets"`
}

// Lookup ищет корзину по ключу.
func (o OrderedBuckets) Lookup(key string) (Bucket, bool) {
	for _, b := range o.Buckets {
		if b.Key == key {
			return b, true
		}
	}
	return Bucket{}, false
}

// Total суммирует показатели всех корзин.
func (o OrderedBuckets) Total() (Measures, int) {
	var total Measures
	count := 0
	for _, b := range o.Buckets {
		total.Add(b.Measures)
		count += b.Count
	}
	return total, count
}

// Series — упорядоченные значения одного вида активности.
type Series struct {
	Name   string       `json:"name"`
	Type   ActivityType `json:"type,omitempty"`
	Values []float64    `json:"values"`
}

// Chart — контракт внешнего рендерера графиков.
type Chart struct {
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// DateRange — границы произвольного периода в локальных днях, включительно.
type DateRange struct {
	Start time.Time
	End   time.Time
}
