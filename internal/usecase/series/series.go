// Package series выравнивает корзины разных видов активности на общую шкалу меток для графика.
package series

import (
	"sort"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/calendar"
)

// Policy определяет заполнение пропусков.
type Policy int

const (
	// ZeroFill ставит ноль в корзины без значения. Подходит для сумм.
	ZeroFill Policy = iota
	// CarryForward повторяет последнее известное значение. Подходит для скоростей.
	CarryForward
)

// PolicyFor возвращает политику по умолчанию для метрики.
func PolicyFor(metric domain.Metric) Policy {
	if metric.IsRate() {
		return CarryForward
	}
	return ZeroFill
}

// Options настраивает построение графика.
type Options struct {
	Metric    domain.Metric
	Policy    Policy
	Formatter MonthFormatter
	// Skeleton задаёт обязательный набор корзин, например канонические нулевые корзины окна.
	Skeleton *domain.OrderedBuckets
}

type column struct {
	key   string
	label string
}

// Build строит график: одна серия на вид активности, все серии одной длины.
func Build(perType map[domain.ActivityType]domain.OrderedBuckets, opts Options) domain.Chart {
	formatter := opts.Formatter
	if formatter == nil {
		formatter = EnglishMonths
	}

	kinds := make([]domain.ActivityType, 0, len(perType))
	for kind := range perType {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Order() < kinds[j].Order() })

	sources := make([]domain.OrderedBuckets, 0, len(kinds)+1)
	if opts.Skeleton != nil {
		sources = append(sources, *opts.Skeleton)
	}
	for _, kind := range kinds {
		sources = append(sources, perType[kind])
	}

	granularity, columns := collectColumns(sources)
	monthKeyed := granularity.MonthKeyed()
	withYear := spansYears(columns)
	if monthKeyed {
		for i := range columns {
			columns[i].label = monthLabel(columns[i].key, formatter, withYear)
		}
	}

	chart := domain.Chart{
		Labels: make([]string, len(columns)),
		Series: make([]domain.Series, 0, len(kinds)),
	}
	for i, col := range columns {
		chart.Labels[i] = col.label
	}

	for _, kind := range kinds {
		joined := make(map[string]domain.Bucket)
		for _, b := range perType[kind].Buckets {
			joinKey := b.Key
			if monthKeyed {
				joinKey = monthLabel(b.Key, formatter, withYear)
			}
			if _, seen := joined[joinKey]; seen {
				continue
			}
			joined[joinKey] = b
		}

		values := make([]float64, len(columns))
		present := make([]bool, len(columns))
		for i, col := range columns {
			joinKey := col.key
			if monthKeyed {
				joinKey = col.label
			}
			b, ok := joined[joinKey]
			if ok && b.Count > 0 {
				values[i] = b.Value(opts.Metric)
				present[i] = true
			}
		}
		chart.Series = append(chart.Series, domain.Series{
			Name:   kind.Title(),
			Type:   kind,
			Values: FillGaps(values, present, opts.Policy),
		})
	}
	return chart
}

// FillGaps заполняет пропуски по политике. Повторное применение с той же маской ничего не меняет.
func FillGaps(values []float64, present []bool, policy Policy) []float64 {
	out := make([]float64, len(values))
	var lastKnown float64
	known := false
	for i := range values {
		switch {
		case present[i]:
			out[i] = values[i]
			lastKnown = values[i]
			known = true
		case policy == CarryForward && known:
			out[i] = lastKnown
		default:
			out[i] = 0
		}
	}
	return out
}

// collectColumns выбирает порядок меток: канонический для фиксированных гранулярностей,
// иначе объединение ключей в хронологическом порядке.
func collectColumns(sources []domain.OrderedBuckets) (domain.Granularity, []column) {
	var granularity domain.Granularity
	for _, src := range sources {
		if src.Granularity != "" {
			granularity = src.Granularity
			break
		}
	}

	var columns []column
	seen := make(map[string]struct{})
	for _, src := range sources {
		for _, b := range src.Buckets {
			if _, ok := seen[b.Key]; ok {
				continue
			}
			seen[b.Key] = struct{}{}
			columns = append(columns, column{key: b.Key, label: b.Label})
		}
		if granularity.FixedCardinality() && len(columns) > 0 {
			return granularity, columns
		}
	}
	sort.SliceStable(columns, func(i, j int) bool { return columns[i].key < columns[j].key })
	return granularity, columns
}

func monthLabel(key string, formatter MonthFormatter, withYear bool) string {
	year, month, err := calendar.ParseMonthKey(key)
	if err != nil {
		return key
	}
	return formatter.FormatMonth(year, month, withYear)
}

func spansYears(columns []column) bool {
	if len(columns) == 0 {
		return false
	}
	first := columns[0].key
	for _, col := range columns[1:] {
		if len(col.key) >= 4 && len(first) >= 4 && col.key[:4] != first[:4] {
			return true
		}
	}
	return false
}
