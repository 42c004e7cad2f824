package domain

// RecordSource — либо сырые записи, либо дневные агрегаты, уже посчитанные сервером.
type RecordSource interface {
	isRecordSource()
}

// RawSource содержит сырые записи журнала.
type RawSource struct {
	Records []ActivityRecord
}

// PreAggregatedSource содержит дневные агрегаты сервера.
type PreAggregatedSource struct {
	Stats BucketedStats
}

func (RawSource) isRecordSource()           {}
func (PreAggregatedSource) isRecordSource() {}

// BucketedStats — дневные итоги, сгруппированные сервером в часовом поясе Timezone.
type BucketedStats struct {
	Timezone string       `json:"timezone"`
	Days     []DailyTotal `json:"days"`
}

// DailyTotal — итог одного вида активности за локальный день.
type DailyTotal struct {
	Date string       `json:"date"`
	Type ActivityType `json:"type"`
	Measures
	Count int `json:"count"`
}
