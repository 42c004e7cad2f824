// Package tzconv переводит моменты UTC в настенное время часового пояса и обратно.
// Все моменты хранятся в UTC; смещения используются только для отображения.
package tzconv

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"immersion-stats/internal/domain"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// UTC — имя часового пояса по умолчанию.
const UTC = "UTC"

// Load разрешает имя IANA в *time.Location. Пустое имя и "UTC" разрешаются без обращения к базе.
func Load(name string) (*time.Location, error) {
	loc, _, err := resolve(name)
	return loc, err
}

// Normalize возвращает каноничное имя часового пояса.
func Normalize(name string) (string, error) {
	_, canonical, err := resolve(name)
	return canonical, err
}

// LoadOrUTC разрешает часовой пояс и откатывается к UTC. Второе значение сообщает об откате.
func LoadOrUTC(name string) (*time.Location, bool) {
	loc, err := Load(name)
	if err != nil {
		return time.UTC, true
	}
	return loc, false
}

func resolve(raw string) (*time.Location, string, error) {
	candidate := strings.TrimSpace(raw)
	switch strings.ToUpper(candidate) {
	case "", "UTC", "ETC/UTC", "Z":
		return time.UTC, UTC, nil
	case "LOCAL":
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidTimezone, raw)
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if loc, err := time.LoadLocation(candidate); err == nil {
		return loc, candidate, nil
	}
	normalized := titleCase(candidate)
	if loc, err := time.LoadLocation(normalized); err == nil {
		return loc, normalized, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrInvalidTimezone, raw)
}

// titleCase приводит "america/new_york" к "America/New_York".
func titleCase(candidate string) string {
	parts := strings.Split(strings.ToLower(candidate), "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	return strings.Join(parts, "/")
}

// LocalPartsOf раскладывает момент на настенное время в часовом поясе.
func LocalPartsOf(instant time.Time, name string) (domain.LocalParts, error) {
	loc, err := Load(name)
	if err != nil {
		return domain.LocalParts{}, err
	}
	return PartsIn(instant, loc), nil
}

// PartsIn раскладывает момент в уже разрешённом часовом поясе.
func PartsIn(instant time.Time, loc *time.Location) domain.LocalParts {
	local := instant.In(loc)
	return domain.LocalParts{
		Year:   local.Year(),
		Month:  int(local.Month()),
		Day:    local.Day(),
		Hour:   local.Hour(),
		Minute: local.Minute(),
		Second: local.Second(),
	}
}

// FromLocalParts переводит настенное время часового пояса обратно в UTC.
// Несуществующее время на переходе летнего времени сдвигается по правилам time.Date.
func FromLocalParts(parts domain.LocalParts, name string) (time.Time, error) {
	loc, err := Load(name)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(parts.Year, time.Month(parts.Month), parts.Day, parts.Hour, parts.Minute, parts.Second, 0, loc)
	return local.UTC(), nil
}

// OffsetMinutesOf возвращает смещение пояса в минутах на момент at, так что UTC = local - offset.
func OffsetMinutesOf(name string, at time.Time) (int, error) {
	loc, err := Load(name)
	if err != nil {
		return 0, err
	}
	_, seconds := at.In(loc).Zone()
	return seconds / 60, nil
}

// FormatOffset форматирует смещение как "UTC+09:00".
func FormatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, minutes/60, minutes%60)
}

// Zone — элемент списка выбора часового пояса.
type Zone struct {
	Name          string `json:"name"`
	OffsetMinutes int    `json:"offset_minutes"`
	Label         string `json:"label"`
}

// List возвращает пояса для выбора, отсортированные по смещению на момент at и затем по имени.
func List(at time.Time) []Zone {
	zones := make([]Zone, 0, len(pickerZones))
	for _, name := range pickerZones {
		offset, err := OffsetMinutesOf(name, at)
		if err != nil {
			continue
		}
		zones = append(zones, Zone{
			Name:          name,
			OffsetMinutes: offset,
			Label:         fmt.Sprintf("(%s) %s", FormatOffset(offset), strings.ReplaceAll(name, "_", " ")),
		})
	}
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].OffsetMinutes != zones[j].OffsetMinutes {
			return zones[i].OffsetMinutes < zones[j].OffsetMinutes
		}
		return zones[i].Name < zones[j].Name
	})
	return zones
}

var pickerZones = []string{
	"Pacific/Honolulu",
	"America/Anchorage",
	"America/Los_Angeles",
	"America/Denver",
	"America/Chicago",
	"America/New_York",
	"America/Halifax",
	"America/Sao_Paulo",
	"America/Argentina/Buenos_Aires",
	"Atlantic/Azores",
	"UTC",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"Europe/Madrid",
	"Africa/Cairo",
	"Europe/Kyiv",
	"Europe/Moscow",
	"Asia/Dubai",
	"Asia/Karachi",
	"Asia/Kolkata",
	"Asia/Kathmandu",
	"Asia/Dhaka",
	"Asia/Bangkok",
	"Asia/Jakarta",
	"Asia/Shanghai",
	"Asia/Singapore",
	"Asia/Taipei",
	"Asia/Manila",
	"Asia/Seoul",
	"Asia/Tokyo",
	"Australia/Adelaide",
	"Australia/Sydney",
	"Pacific/Auckland",
}
