// Package heatmap раскладывает опыт по дням последних 24 недель и считает уровни интенсивности.
package heatmap

import (
	"time"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/aggregate"
	"immersion-stats/internal/usecase/calendar"
)

// WindowDays — длина окна тепловой карты.
const WindowDays = 168

// Day — один день тепловой карты.
type Day struct {
	Date    string  `json:"date"`
	TotalXP float64 `json:"total_xp"`
	Level   int     `json:"level"`
}

// Result — тепловая карта, дни по возрастанию, последний день — локальное «сегодня».
type Result struct {
	Days             []Day   `json:"days"`
	Weeks            [][]Day `json:"weeks"`
	MaxDailyXP       float64 `json:"max_daily_xp"`
	Timezone         string  `json:"timezone"`
	TimezoneFallback bool    `json:"timezone_fallback,omitempty"`
	Skipped          int     `json:"skipped,omitempty"`
}

// Bin строит тепловую карту по сырым записям.
func Bin(records []domain.ActivityRecord, timezone string, reference time.Time) Result {
	return BinSource(domain.RawSource{Records: records}, timezone, reference)
}

// BinSource строит тепловую карту по любому виду источника. Всегда суммируется опыт.
func BinSource(source domain.RecordSource, timezone string, reference time.Time) Result {
	normalizer := calendar.NewOrUTC(timezone)
	entries, skipped := aggregate.FromSource(source, normalizer)

	today := normalizer.Today(reference)
	start := calendar.AddDays(today, -(WindowDays - 1))

	totals := make(map[string]float64, WindowDays)
	for _, entry := range entries {
		totals[entry.Info.DayKey()] += entry.Measures.XP
	}

	res := Result{
		Days:             make([]Day, 0, WindowDays),
		Timezone:         normalizer.Timezone(),
		TimezoneFallback: normalizer.Fallback(),
		Skipped:          skipped,
	}
	for offset := 0; offset < WindowDays; offset++ {
		key := calendar.AddDays(start, offset).DayKey()
		total := totals[key]
		if total > res.MaxDailyXP {
			res.MaxDailyXP = total
		}
		res.Days = append(res.Days, Day{Date: key, TotalXP: total})
	}
	for i := range res.Days {
		res.Days[i].Level = Level(res.Days[i].TotalXP, res.MaxDailyXP)
	}
	res.Weeks = chunkWeeks(res.Days)
	return res
}

// Level возвращает интенсивность 0–4 для дневного опыта относительно максимума окна.
func Level(value, maxDaily float64) int {
	if value <= 0 {
		return 0
	}
	// При value > 0 максимум окна тоже положителен; ветка оставлена для внешних вызовов.
	if maxDaily <= 0 {
		return 1
	}
	ratio := value / maxDaily
	switch {
	case ratio >= 0.8:
		return 4
	case ratio >= 0.55:
		return 3
	case ratio >= 0.3:
		return 2
	default:
		return 1
	}
}

// chunkWeeks режет дни на недели по 7, начиная с первого дня окна.
func chunkWeeks(days []Day) [][]Day {
	weeks := make([][]Day, 0, (len(days)+6)/7)
	for i := 0; i < len(days); i += 7 {
		end := i + 7
		if end > len(days) {
			end = len(days)
		}
		weeks = append(weeks, days[i:end])
	}
	return weeks
}

// Streak описывает серии активных дней внутри окна.
type Streak struct {
	Current    int `json:"current"`
	Longest    int `json:"longest"`
	ActiveDays int `json:"active_days"`
}

// Streaks считает текущую и самую длинную серию. Текущая серия заканчивается сегодня
// или вчера, если сегодня активности ещё не было.
func Streaks(res Result) Streak {
	var streak Streak
	run := 0
	for _, day := range res.Days {
		if day.TotalXP <= 0 {
			run = 0
			continue
		}
		streak.ActiveDays++
		run++
		if run > streak.Longest {
			streak.Longest = run
		}
	}

	last := len(res.Days) - 1
	if last >= 0 && res.Days[last].TotalXP <= 0 {
		last--
	}
	for i := last; i >= 0 && res.Days[i].TotalXP > 0; i-- {
		streak.Current++
	}
	return streak
}
