// Package aggregate группирует записи журнала по локальным корзинам времени.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/calendar"
)

// MaxDailyRangeDays — наибольшая длина произвольного периода, который ещё разбивается по дням.
const MaxDailyRangeDays = 62

var weekdayKeys = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthAbbr = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// WeekdayKey возвращает ключ корзины дня недели по индексу (0 — воскресенье).
func WeekdayKey(idx int) string {
	return weekdayKeys[((idx%7)+7)%7]
}

// Request описывает окно и часовой пояс агрегации.
// Start и End учитываются только для TimeframeCustom, как локальные календарные дни включительно.
type Request struct {
	Timeframe domain.Timeframe
	Start     time.Time
	End       time.Time
	Timezone  string
	Reference time.Time
}

// Entry — запись с уже вычисленной локальной датой.
type Entry struct {
	Info     domain.LocalDateInfo
	Type     domain.ActivityType
	Measures domain.Measures
	Count    int
}

// Result — упорядоченные корзины и счётчики обработки.
type Result struct {
	domain.OrderedBuckets
	Timezone         string
	TimezoneFallback bool
	// Skipped — записи без валидного момента.
	Skipped int
	// Unplaced — записи без времени суток, не попавшие в почасовые корзины.
	Unplaced int
	// Matched — записи, попавшие в окно.
	Matched int
}

// Aggregate группирует сырые записи.
func Aggregate(records []domain.ActivityRecord, req Request) Result {
	return AggregateSource(domain.RawSource{Records: records}, req)
}

// AggregateSource группирует записи любого вида источника.
func AggregateSource(source domain.RecordSource, req Request) Result {
	normalizer := calendar.NewOrUTC(req.Timezone)
	entries, skipped := FromSource(source, normalizer)
	res := fold(entries, req, normalizer)
	res.Skipped += skipped
	return res
}

// FromSource приводит источник к записям с локальной датой.
// Дневные агрегаты сервера получают дату из ключа дня и не имеют времени суток.
func FromSource(source domain.RecordSource, normalizer *calendar.Normalizer) ([]Entry, int) {
	switch src := source.(type) {
	case domain.RawSource:
		entries := make([]Entry, 0, len(src.Records))
		skipped := 0
		for _, record := range src.Records {
			if !record.TimestampUTC.Valid() {
				skipped++
				continue
			}
			entries = append(entries, Entry{
				Info:     normalizer.Info(record.TimestampUTC.Time),
				Type:     record.Kind(),
				Measures: record.Measures(),
				Count:    1,
			})
		}
		return entries, skipped
	case domain.PreAggregatedSource:
		entries := make([]Entry, 0, len(src.Stats.Days))
		skipped := 0
		for _, day := range src.Stats.Days {
			info, err := calendar.ParseDayKey(day.Date)
			if err != nil {
				skipped++
				continue
			}
			count := day.Count
			if count <= 0 {
				count = 1
			}
			entries = append(entries, Entry{
				Info:     info,
				Type:     domain.ParseActivityType(string(day.Type)),
				Measures: domain.ActivityRecord{XP: day.XP, Minutes: day.Minutes, Characters: day.Characters, Pages: day.Pages, Episodes: day.Episodes}.Measures(),
				Count:    count,
			})
		}
		return entries, skipped
	}
	return nil, 0
}

// Fold группирует подготовленные записи. Общее ядро для обоих видов источника.
func Fold(entries []Entry, req Request) Result {
	return fold(entries, req, calendar.NewOrUTC(req.Timezone))
}

// SplitByType группирует записи отдельно для каждого вида активности, встретившегося в окне.
func SplitByType(entries []Entry, req Request) map[domain.ActivityType]Result {
	normalizer := calendar.NewOrUTC(req.Timezone)
	grouped := make(map[domain.ActivityType][]Entry)
	for _, entry := range entries {
		grouped[entry.Type] = append(grouped[entry.Type], entry)
	}
	out := make(map[domain.ActivityType]Result, len(grouped))
	for kind, group := range grouped {
		res := fold(group, req, normalizer)
		if res.Matched == 0 {
			continue
		}
		out[kind] = res
	}
	return out
}

// GranularityFor выводит гранулярность из периода.
func GranularityFor(req Request) domain.Granularity {
	switch req.Timeframe {
	case domain.TimeframeToday:
		return domain.GranularityHourOfDay
	case domain.TimeframeWeek:
		return domain.GranularityDayOfWeek
	case domain.TimeframeMonth:
		return domain.GranularityDayOfMonth
	case domain.TimeframeYear:
		return domain.GranularityMonthOfYear
	case domain.TimeframeCustom:
		start, end := customBounds(req)
		if calendar.DaysBetween(start, end)+1 <= MaxDailyRangeDays {
			return domain.GranularityDayOfRange
		}
		return domain.GranularityMonthOfRange
	default:
		return domain.GranularityMonthOfTotal
	}
}

func customBounds(req Request) (domain.LocalDateInfo, domain.LocalDateInfo) {
	start := domain.DateInfo(req.Start)
	end := domain.DateInfo(req.End)
	if end.Civil().Before(start.Civil()) {
		start, end = end, start
	}
	return start, end
}

func fold(entries []Entry, req Request, normalizer *calendar.Normalizer) Result {
	granularity := GranularityFor(req)
	today := normalizer.Today(req.Reference)
	res := Result{
		OrderedBuckets:   domain.OrderedBuckets{Granularity: granularity},
		Timezone:         normalizer.Timezone(),
		TimezoneFallback: normalizer.Fallback(),
	}

	buckets := skeleton(granularity, today, req)
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Key] = i
	}

	inWindow := windowPredicate(req, today)
	for _, entry := range entries {
		if !inWindow(entry.Info) {
			continue
		}
		res.Matched++
		if granularity == domain.GranularityHourOfDay && !entry.Info.HasTime {
			res.Unplaced++
			continue
		}
		key, label := bucketKey(granularity, entry.Info)
		pos, ok := index[key]
		if !ok {
			buckets = append(buckets, domain.Bucket{Key: key, Label: label})
			pos = len(buckets) - 1
			index[key] = pos
		}
		buckets[pos].Measures.Add(entry.Measures)
		buckets[pos].Count += entry.Count
	}

	if granularity == domain.GranularityMonthOfTotal {
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	}
	res.Buckets = buckets
	return res
}

func windowPredicate(req Request, today domain.LocalDateInfo) func(domain.LocalDateInfo) bool {
	switch req.Timeframe {
	case domain.TimeframeToday:
		key := today.DayKey()
		return func(info domain.LocalDateInfo) bool { return info.DayKey() == key }
	case domain.TimeframeWeek:
		key := today.WeekStartKey()
		return func(info domain.LocalDateInfo) bool { return info.WeekStartKey() == key }
	case domain.TimeframeMonth:
		key := today.MonthKey()
		return func(info domain.LocalDateInfo) bool { return info.MonthKey() == key }
	case domain.TimeframeYear:
		return func(info domain.LocalDateInfo) bool { return info.Year == today.Year }
	case domain.TimeframeCustom:
		start, end := customBounds(req)
		return func(info domain.LocalDateInfo) bool {
			day := info.Civil()
			return !day.Before(start.Civil()) && !day.After(end.Civil())
		}
	default:
		return func(domain.LocalDateInfo) bool { return true }
	}
}

func bucketKey(granularity domain.Granularity, info domain.LocalDateInfo) (string, string) {
	switch granularity {
	case domain.GranularityHourOfDay:
		key := fmt.Sprintf("%02d", info.Hour)
		return key, key
	case domain.GranularityDayOfWeek:
		key := WeekdayKey(info.Weekday())
		return key, key
	case domain.GranularityDayOfMonth, domain.GranularityDayOfRange:
		return info.DayKey(), dayLabel(granularity, info)
	default:
		return info.MonthKey(), monthAbbr[info.Month-1]
	}
}

func dayLabel(granularity domain.Granularity, info domain.LocalDateInfo) string {
	if granularity == domain.GranularityDayOfMonth {
		return fmt.Sprintf("%d", info.Day)
	}
	return fmt.Sprintf("%s %d", monthAbbr[info.Month-1], info.Day)
}

// skeleton возвращает канонический набор пустых корзин.
func skeleton(granularity domain.Granularity, today domain.LocalDateInfo, req Request) []domain.Bucket {
	buckets := make([]domain.Bucket, 0, 31)
	add := func(info domain.LocalDateInfo) {
		key, label := bucketKey(granularity, info)
		buckets = append(buckets, domain.Bucket{Key: key, Label: label})
	}
	switch granularity {
	case domain.GranularityHourOfDay:
		for hour := 0; hour < 24; hour++ {
			info := today
			info.Hour = hour
			add(info)
		}
	case domain.GranularityDayOfWeek:
		for idx := 0; idx < 7; idx++ {
			buckets = append(buckets, domain.Bucket{Key: weekdayKeys[idx], Label: weekdayKeys[idx]})
		}
	case domain.GranularityDayOfMonth:
		first := domain.DateInfo(time.Date(today.Year, time.Month(today.Month), 1, 0, 0, 0, 0, time.UTC))
		for day := 0; day < calendar.DaysInMonth(today.Year, today.Month); day++ {
			add(calendar.AddDays(first, day))
		}
	case domain.GranularityMonthOfYear:
		for month := 1; month <= 12; month++ {
			add(domain.DateInfo(time.Date(today.Year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)))
		}
	case domain.GranularityDayOfRange:
		start, end := customBounds(req)
		for day := start; !day.Civil().After(end.Civil()); day = calendar.AddDays(day, 1) {
			add(day)
		}
	case domain.GranularityMonthOfRange:
		start, end := customBounds(req)
		cursor := time.Date(start.Year, time.Month(start.Month), 1, 0, 0, 0, 0, time.UTC)
		last := time.Date(end.Year, time.Month(end.Month), 1, 0, 0, 0, 0, time.UTC)
		for ; !cursor.After(last); cursor = cursor.AddDate(0, 1, 0) {
			add(domain.DateInfo(cursor))
		}
	}
	return buckets
}
