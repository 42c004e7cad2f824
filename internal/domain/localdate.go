package domain

import (
	"fmt"
	"time"
)

// LocalParts — настенное время момента в заданном часовом поясе.
type LocalParts struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int
}

// LocalDateInfo — производное от момента и часового пояса, не сохраняется.
// HasTime ложно для строк, восстановленных из дневных агрегатов сервера.
type LocalDateInfo struct {
	LocalParts
	HasTime bool
}

// Civil возвращает локальную календарную дату как полночь UTC, удобную для арифметики по дням.
func (i LocalDateInfo) Civil() time.Time {
	return time.Date(i.Year, time.Month(i.Month), i.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday возвращает индекс дня недели: 0 — воскресенье, 6 — суббота.
func (i LocalDateInfo) Weekday() int {
	return int(i.Civil().Weekday())
}

// DayKey возвращает ключ дня "YYYY-MM-DD".
func (i LocalDateInfo) DayKey() string {
	return fmt.Sprintf("%04d-%02d-%02d", i.Year, i.Month, i.Day)
}

// MonthKey возвращает ключ месяца "YYYY-MM".
func (i LocalDateInfo) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", i.Year, i.Month)
}

// YearKey возвращает ключ года "YYYY".
func (i LocalDateInfo) YearKey() string {
	return fmt.Sprintf("%04d", i.Year)
}

// WeekStartKey возвращает ключ понедельника ISO-недели, в которую попадает дата.
func (i LocalDateInfo) WeekStartKey() string {
	idx := i.Weekday()
	offset := 1 - idx
	if idx == 0 {
		offset = -6
	}
	return DateInfo(i.Civil().AddDate(0, 0, offset)).DayKey()
}

// DateInfo строит информацию о дне из календарной даты без времени суток.
func DateInfo(civil time.Time) LocalDateInfo {
	y, m, d := civil.Date()
	return LocalDateInfo{LocalParts: LocalParts{Year: y, Month: int(m), Day: d}}
}
