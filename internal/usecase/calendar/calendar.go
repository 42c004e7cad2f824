// Package calendar строит ключи локальных корзин (день, неделя, месяц, год) для часового пояса.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/usecase/tzconv"
)

// ErrInvalidKey возвращается для ключа дня или месяца в неверном формате.
var ErrInvalidKey = errors.New("invalid calendar key")

// Normalizer переводит моменты в локальные даты одного часового пояса.
type Normalizer struct {
	name     string
	loc      *time.Location
	fallback bool
}

// New создаёт нормализатор. Некорректный пояс приводит к ошибке tzconv.ErrInvalidTimezone.
func New(timezone string) (*Normalizer, error) {
	name, err := tzconv.Normalize(timezone)
	if err != nil {
		return nil, err
	}
	loc, err := tzconv.Load(name)
	if err != nil {
		return nil, err
	}
	return &Normalizer{name: name, loc: loc}, nil
}

// NewOrUTC создаёт нормализатор и откатывается к UTC для некорректного пояса.
func NewOrUTC(timezone string) *Normalizer {
	n, err := New(timezone)
	if err != nil {
		return &Normalizer{name: tzconv.UTC, loc: time.UTC, fallback: true}
	}
	return n
}

// Timezone возвращает действующее имя часового пояса.
func (n *Normalizer) Timezone() string {
	return n.name
}

// Fallback сообщает, что запрошенный пояс был заменён на UTC.
func (n *Normalizer) Fallback() bool {
	return n.fallback
}

// Location возвращает разрешённый часовой пояс.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Info раскладывает момент на локальную дату и время.
func (n *Normalizer) Info(instant time.Time) domain.LocalDateInfo {
	return domain.LocalDateInfo{LocalParts: tzconv.PartsIn(instant, n.loc), HasTime: true}
}

// Today возвращает локальную дату опорного момента.
func (n *Normalizer) Today(reference time.Time) domain.LocalDateInfo {
	return n.Info(reference)
}

// AddDays сдвигает локальную календарную дату на days дней. Время суток отбрасывается.
func AddDays(info domain.LocalDateInfo, days int) domain.LocalDateInfo {
	return domain.DateInfo(info.Civil().AddDate(0, 0, days))
}

// DaysInMonth возвращает число дней в месяце.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDayKey разбирает ключ "YYYY-MM-DD".
func ParseDayKey(key string) (domain.LocalDateInfo, error) {
	parsed, err := time.Parse("2006-01-02", key)
	if err != nil {
		return domain.LocalDateInfo{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return domain.DateInfo(parsed), nil
}

// ParseMonthKey разбирает ключ "YYYY-MM".
func ParseMonthKey(key string) (year, month int, err error) {
	parsed, err := time.Parse("2006-01", key)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return parsed.Year(), int(parsed.Month()), nil
}

// DaysBetween возвращает число календарных дней от from до to.
func DaysBetween(from, to domain.LocalDateInfo) int {
	return int(to.Civil().Sub(from.Civil()).Hours() / 24)
}

// Clock отдаёт текущий момент. Единственный нечистый вход расчётов.
type Clock interface {
	Now() time.Time
}

// SystemClock использует системное время.
type SystemClock struct{}

// Now возвращает текущий момент в UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock всегда возвращает один и тот же момент.
type FixedClock time.Time

// Now возвращает зафиксированный момент.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
