// Package stats связывает фильтры пользователя с расчётом агрегатов, графиков и тепловой карты.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
	"immersion-stats/internal/usecase/aggregate"
	"immersion-stats/internal/usecase/calendar"
	"immersion-stats/internal/usecase/heatmap"
	"immersion-stats/internal/usecase/series"
	"immersion-stats/internal/usecase/tzconv"
)

// ErrSourceUnavailable возвращается, когда источник записей не ответил.
var ErrSourceUnavailable = errors.New("records unavailable")

// Config задаёт поведение сервиса.
type Config struct {
	DefaultTimezone string
	CacheTTL        time.Duration
	// DailyTotals включает чтение дневных агрегатов вместо сырых записей там, где хватает дневной точности.
	DailyTotals bool
}

// Service считает статистику по журналу пользователя.
type Service struct {
	records domain.RecordProvider
	users   domain.UserRepo
	cache   domain.Cache
	clock   calendar.Clock
	cfg     Config
	logger  zerolog.Logger
}

// NewService создаёт сервис статистики. cache может быть nil.
func NewService(records domain.RecordProvider, users domain.UserRepo, cache domain.Cache, clock calendar.Clock, cfg Config, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return &Service{
		records: records,
		users:   users,
		cache:   cache,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With().Str("component", "stats").Logger(),
	}
}

// ChartResult — график и сведения о расчёте.
type ChartResult struct {
	domain.Chart
	Granularity      domain.Granularity `json:"granularity"`
	Metric           domain.Metric      `json:"metric"`
	Timezone         string             `json:"timezone"`
	TimezoneFallback bool               `json:"timezone_fallback,omitempty"`
	Skipped          int                `json:"skipped,omitempty"`
}

// TypeTotal — итоги одного вида активности за окно.
type TypeTotal struct {
	Type domain.ActivityType `json:"type,omitempty"`
	Name string              `json:"name"`
	domain.Measures
	Count             int     `json:"count"`
	CharactersPerHour float64 `json:"characters_per_hour"`
}

// SummaryResult — заголовочные числа экрана статистики.
type SummaryResult struct {
	Timeframe        domain.Timeframe `json:"timeframe"`
	Timezone         string           `json:"timezone"`
	TimezoneFallback bool             `json:"timezone_fallback,omitempty"`
	Overall          TypeTotal        `json:"overall"`
	ByType           []TypeTotal      `json:"by_type"`
	Skipped          int              `json:"skipped,omitempty"`
}

// HeatmapResult — тепловая карта и серии активных дней.
type HeatmapResult struct {
	heatmap.Result
	Streak heatmap.Streak `json:"streak"`
}

// Progress строит аддитивный график по выбранной метрике, пропуски заполняются нулём.
func (s *Service) Progress(ctx context.Context, userID string, f Filter) (ChartResult, error) {
	if f.Metric == "" {
		f.Metric = domain.MetricExperience
	}
	return s.chart(ctx, "progress", userID, f)
}

// Speed строит график скорости чтения, пропуски заполняются последним известным значением.
func (s *Service) Speed(ctx context.Context, userID string, f Filter) (ChartResult, error) {
	f.Metric = domain.MetricCharactersPerHour
	return s.chart(ctx, "speed", userID, f)
}

func (s *Service) chart(ctx context.Context, kind, userID string, f Filter) (ChartResult, error) {
	timezone, err := s.resolveTimezone(ctx, userID, f.Timezone)
	if err != nil {
		return ChartResult{}, err
	}
	f.Timezone = timezone
	reference := s.clock.Now()

	var out ChartResult
	key, hit := s.cached(ctx, kind, userID, f.cacheKey(), timezone, reference, &out)
	if hit {
		return out, nil
	}

	start := time.Now()
	req := aggregate.Request{Timeframe: f.Timeframe, Start: f.Start, End: f.End, Timezone: timezone, Reference: reference}
	normalizer := calendar.NewOrUTC(timezone)
	source, err := s.load(ctx, userID, normalizer, req, f.Timeframe != domain.TimeframeToday)
	if err != nil {
		return ChartResult{}, err
	}

	entries, skipped := aggregate.FromSource(source, normalizer)
	entries = filterType(entries, f.MediaType)
	overall := aggregate.Fold(entries, req)

	perType := make(map[domain.ActivityType]domain.OrderedBuckets)
	for activity, res := range aggregate.SplitByType(entries, req) {
		perType[activity] = res.OrderedBuckets
	}
	if f.MediaType != "" {
		if _, ok := perType[f.MediaType]; !ok {
			perType[f.MediaType] = overall.OrderedBuckets
		}
	}

	out = ChartResult{
		Chart: series.Build(perType, series.Options{
			Metric:    f.Metric,
			Policy:    series.PolicyFor(f.Metric),
			Formatter: series.FormatterFor(f.Locale),
			Skeleton:  &overall.OrderedBuckets,
		}),
		Granularity:      overall.Granularity,
		Metric:           f.Metric,
		Timezone:         overall.Timezone,
		TimezoneFallback: overall.TimezoneFallback,
		Skipped:          skipped,
	}
	s.observe(kind, userID, start, skipped, overall.TimezoneFallback, timezone)
	s.store(ctx, key, out)
	return out, nil
}

// Summary возвращает итоги окна по каждому виду активности и общий итог.
func (s *Service) Summary(ctx context.Context, userID string, f Filter) (SummaryResult, error) {
	timezone, err := s.resolveTimezone(ctx, userID, f.Timezone)
	if err != nil {
		return SummaryResult{}, err
	}
	f.Timezone = timezone
	reference := s.clock.Now()

	var out SummaryResult
	key, hit := s.cached(ctx, "summary", userID, f.cacheKey(), timezone, reference, &out)
	if hit {
		return out, nil
	}

	start := time.Now()
	req := aggregate.Request{Timeframe: f.Timeframe, Start: f.Start, End: f.End, Timezone: timezone, Reference: reference}
	normalizer := calendar.NewOrUTC(timezone)
	source, err := s.load(ctx, userID, normalizer, req, true)
	if err != nil {
		return SummaryResult{}, err
	}
	entries, skipped := aggregate.FromSource(source, normalizer)
	entries = filterType(entries, f.MediaType)

	// Почасовые корзины теряют записи без времени суток, итоги считаются по дням.
	if req.Timeframe == domain.TimeframeToday {
		today := normalizer.Today(reference).Civil()
		req.Timeframe, req.Start, req.End = domain.TimeframeCustom, today, today
	}
	overall := aggregate.Fold(entries, req)

	out = SummaryResult{
		Timeframe:        f.Timeframe,
		Timezone:         overall.Timezone,
		TimezoneFallback: overall.TimezoneFallback,
		Overall:          totalOf("Total", "", overall.OrderedBuckets),
		ByType:           []TypeTotal{},
		Skipped:          skipped,
	}
	split := aggregate.SplitByType(entries, req)
	for _, activity := range domain.ActivityTypes() {
		res, ok := split[activity]
		if !ok {
			continue
		}
		out.ByType = append(out.ByType, totalOf(activity.Title(), activity, res.OrderedBuckets))
	}
	s.observe("summary", userID, start, skipped, overall.TimezoneFallback, timezone)
	s.store(ctx, key, out)
	return out, nil
}

// Heatmap строит тепловую карту за последние 168 дней и считает серии.
func (s *Service) Heatmap(ctx context.Context, userID, timezone string) (HeatmapResult, error) {
	resolved, err := s.resolveTimezone(ctx, userID, timezone)
	if err != nil {
		return HeatmapResult{}, err
	}
	reference := s.clock.Now()

	var out HeatmapResult
	key, hit := s.cached(ctx, "heatmap", userID, resolved, resolved, reference, &out)
	if hit {
		return out, nil
	}

	start := time.Now()
	normalizer := calendar.NewOrUTC(resolved)
	today := normalizer.Today(reference).Civil()
	req := aggregate.Request{
		Timeframe: domain.TimeframeCustom,
		Start:     today.AddDate(0, 0, -(heatmap.WindowDays - 1)),
		End:       today,
		Timezone:  resolved,
		Reference: reference,
	}
	source, err := s.load(ctx, userID, normalizer, req, true)
	if err != nil {
		return HeatmapResult{}, err
	}
	res := heatmap.BinSource(source, resolved, reference)
	out = HeatmapResult{Result: res, Streak: heatmap.Streaks(res)}
	s.observe("heatmap", userID, start, res.Skipped, res.TimezoneFallback, resolved)
	s.store(ctx, key, out)
	return out, nil
}

// Invalidate сбрасывает закешированную статистику пользователя.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.Bump(ctx, userID); err != nil {
		return fmt.Errorf("инвалидация кеша: %w", err)
	}
	return nil
}

// resolveTimezone выбирает пояс: явный параметр, настройка пользователя, значение по умолчанию, UTC.
func (s *Service) resolveTimezone(ctx context.Context, userID, explicit string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("получение пользователя: %w", err)
	}
	for _, candidate := range []string{explicit, user.Timezone, s.cfg.DefaultTimezone} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return tzconv.UTC, nil
}

// load читает записи, которых достаточно для окна. Дневные агрегаты используются, если это разрешено.
func (s *Service) load(ctx context.Context, userID string, normalizer *calendar.Normalizer, req aggregate.Request, allowDaily bool) (domain.RecordSource, error) {
	if s.cfg.DailyTotals && allowDaily {
		totals, err := s.records.DailyTotals(ctx, userID, normalizer.Timezone())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		// Ключи дней из чужого пояса дали бы сдвинутые корзины, считаем по сырым записям.
		if received, err := tzconv.Normalize(totals.Timezone); totals.Timezone == "" || (err == nil && received == normalizer.Timezone()) {
			return domain.PreAggregatedSource{Stats: totals}, nil
		}
		s.logger.Warn().Str("user_id", userID).Str("requested", normalizer.Timezone()).Str("received", totals.Timezone).
			Msg("дневные агрегаты в другом поясе, читаем сырые записи")
	}
	records, err := s.records.Records(ctx, userID, windowSince(req, normalizer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return domain.RawSource{Records: records}, nil
}

// windowSince возвращает момент, раньше которого записи точно не попадут в окно.
// Запас в двое суток покрывает любое смещение пояса.
func windowSince(req aggregate.Request, normalizer *calendar.Normalizer) time.Time {
	today := normalizer.Today(req.Reference)
	var first domain.LocalDateInfo
	switch req.Timeframe {
	case domain.TimeframeToday:
		first = today
	case domain.TimeframeWeek:
		first, _ = calendar.ParseDayKey(today.WeekStartKey())
	case domain.TimeframeMonth:
		first = domain.DateInfo(time.Date(today.Year, time.Month(today.Month), 1, 0, 0, 0, 0, time.UTC))
	case domain.TimeframeYear:
		first = domain.DateInfo(time.Date(today.Year, time.January, 1, 0, 0, 0, 0, time.UTC))
	case domain.TimeframeCustom:
		first = domain.DateInfo(req.Start)
		if req.End.Before(req.Start) {
			first = domain.DateInfo(req.End)
		}
	default:
		return time.Time{}
	}
	return first.Civil().AddDate(0, 0, -2)
}

func filterType(entries []aggregate.Entry, kind domain.ActivityType) []aggregate.Entry {
	if kind == "" {
		return entries
	}
	out := make([]aggregate.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Type == kind {
			out = append(out, entry)
		}
	}
	return out
}

func totalOf(name string, kind domain.ActivityType, buckets domain.OrderedBuckets) TypeTotal {
	measures, count := buckets.Total()
	return TypeTotal{
		Type:              kind,
		Name:              name,
		Measures:          measures,
		Count:             count,
		CharactersPerHour: measures.CharactersPerHour(),
	}
}

func (s *Service) observe(kind, userID string, start time.Time, skipped int, fallback bool, timezone string) {
	metrics.ObserveCompute(kind, start, skipped, fallback)
	if fallback {
		s.logger.Warn().Str("user_id", userID).Str("timezone", timezone).Msg("некорректный часовой пояс, расчёт в UTC")
	}
	if skipped > 0 {
		s.logger.Debug().Str("user_id", userID).Int("skipped", skipped).Msg("пропущены записи без даты")
	}
}

// cached читает результат из кеша. Возвращает ключ для последующей записи.
func (s *Service) cached(ctx context.Context, kind, userID, filterKey, timezone string, reference time.Time, out any) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	version, err := s.cache.Version(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("кеш: не удалось получить версию")
		return "", false
	}
	// Локальные дата и час опорного момента в ключе сдвигают окно «сегодня» без явной инвалидации.
	// Час берётся в поясе расчёта: у поясов со смещением :30 и :45 полночь не совпадает с границей часа UTC.
	key := fmt.Sprintf("stats:%s:v%d:%s:%s:%s", userID, version, kind, localHourKey(timezone, reference), filterKey)
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("кеш: ошибка чтения")
		}
		metrics.IncCache(false)
		return key, false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("кеш: повреждённая запись")
		metrics.IncCache(false)
		return key, false
	}
	metrics.IncCache(true)
	return key, true
}

// localHourKey возвращает "YYYY-MM-DDTHH" опорного момента в поясе расчёта.
func localHourKey(timezone string, reference time.Time) string {
	local := calendar.NewOrUTC(timezone).Today(reference)
	return fmt.Sprintf("%sT%02d", local.DayKey(), local.Hour)
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.cache == nil || key == "" || s.cfg.CacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Msg("кеш: сериализация результата")
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cfg.CacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("кеш: ошибка записи")
	}
}
