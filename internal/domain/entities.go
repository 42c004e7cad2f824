package domain

import (
	"math"
	"strings"
	"time"
)

// User описывает владельца журнала погружения.
type User struct {
	ID        string
	Username  string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ActivityType описывает вид активности погружения.
type ActivityType string

const (
	ActivityReading ActivityType = "reading"
	ActivityAnime   ActivityType = "anime"
	ActivityVN      ActivityType = "vn"
	ActivityVideo   ActivityType = "video"
	ActivityManga   ActivityType = "manga"
	ActivityAudio   ActivityType = "audio"
	ActivityMovie   ActivityType = "movie"
	ActivityOther   ActivityType = "other"
)

// ActivityTypes возвращает все виды активности в каноничном порядке.
func ActivityTypes() []ActivityType {
	return []ActivityType{ActivityReading, ActivityAnime, ActivityVN, ActivityVideo, ActivityManga, ActivityAudio, ActivityMovie, ActivityOther}
}

var activityTitles = map[ActivityType]string{
	ActivityReading: "Reading",
	ActivityAnime:   "Anime",
	ActivityVN:      "Visual Novel",
	ActivityVideo:   "Video",
	ActivityManga:   "Manga",
	ActivityAudio:   "Audio",
	ActivityMovie:   "Movie",
	ActivityOther:   "Other",
}

// ParseActivityType приводит строку к виду активности. Неизвестные значения считаются other.
func ParseActivityType(raw string) ActivityType {
	candidate := ActivityType(strings.ToLower(strings.TrimSpace(raw)))
	switch candidate {
	case "visual-novel", "visual_novel", "visualnovel":
		return ActivityVN
	}
	if _, ok := activityTitles[candidate]; ok {
		return candidate
	}
	return ActivityOther
}

// Title возвращает отображаемое имя вида активности.
func (t ActivityType) Title() string {
	if title, ok := activityTitles[t]; ok {
		return title
	}
	return activityTitles[ActivityOther]
}

// Order возвращает позицию вида активности в каноничном порядке.
func (t ActivityType) Order() int {
	for idx, candidate := range ActivityTypes() {
		if candidate == t {
			return idx
		}
	}
	return len(activityTitles)
}

// Measures содержит числовые показатели записи или корзины.
type Measures struct {
	XP         float64 `json:"xp"`
	Minutes    float64 `json:"minutes"`
	Characters float64 `json:"characters"`
	Pages      float64 `json:"pages"`
	Episodes   float64 `json:"episodes"`
}

// Add прибавляет показатели.
func (m *Measures) Add(other Measures) {
	m.XP += other.XP
	m.Minutes += other.Minutes
	m.Characters += other.Characters
	m.Pages += other.Pages
	m.Episodes += other.Episodes
}

// CharactersPerHour возвращает скорость чтения. Без минут скорость равна нулю.
func (m Measures) CharactersPerHour() float64 {
	if m.Minutes <= 0 {
		return 0
	}
	return m.Characters / (m.Minutes / 60)
}

// ActivityRecord — одна запись журнала погружения. Создаётся внешней подсистемой и здесь только читается.
type ActivityRecord struct {
	ID           string       `json:"_id,omitempty"`
	UserID       string       `json:"user,omitempty"`
	TimestampUTC Timestamp    `json:"date"`
	Type         ActivityType `json:"type"`
	XP           float64      `json:"xp"`
	Minutes      float64      `json:"time,omitempty"`
	Characters   float64      `json:"chars,omitempty"`
	Pages        float64      `json:"pages,omitempty"`
	Episodes     float64      `json:"episodes,omitempty"`
}

// Measures возвращает показатели записи; отрицательные и нечисловые значения считаются нулём.
func (r ActivityRecord) Measures() Measures {
	return Measures{
		XP:         nonNegative(r.XP),
		Minutes:    nonNegative(r.Minutes),
		Characters: nonNegative(r.Characters),
		Pages:      nonNegative(r.Pages),
		Episodes:   nonNegative(r.Episodes),
	}
}

// Kind возвращает нормализованный вид активности.
func (r ActivityRecord) Kind() ActivityType {
	return ParseActivityType(string(r.Type))
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
