// Package httpapi отдаёт статистику погружения по HTTP в формате {labels, series}.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"immersion-stats/internal/domain"
	httpinfra "immersion-stats/internal/infra/http"
	"immersion-stats/internal/usecase/calendar"
	"immersion-stats/internal/usecase/stats"
	"immersion-stats/internal/usecase/tzconv"
)

// StatsService — расчёт статистики для обработчиков.
type StatsService interface {
	Progress(ctx context.Context, userID string, f stats.Filter) (stats.ChartResult, error)
	Speed(ctx context.Context, userID string, f stats.Filter) (stats.ChartResult, error)
	Summary(ctx context.Context, userID string, f stats.Filter) (stats.SummaryResult, error)
	Heatmap(ctx context.Context, userID, timezone string) (stats.HeatmapResult, error)
}

// PreferencesService — настройки пользователя.
type PreferencesService interface {
	UpdateTimezone(ctx context.Context, userID, timezone string) (string, error)
	Timezones(at time.Time) []tzconv.Zone
}

// Handler связывает HTTP-маршруты с сервисами.
type Handler struct {
	stats StatsService
	prefs PreferencesService
	clock calendar.Clock
	log   zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(statsService StatsService, prefs PreferencesService, clock calendar.Clock, logger zerolog.Logger) *Handler {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	return &Handler{
		stats: statsService,
		prefs: prefs,
		clock: clock,
		log:   logger.With().Str("component", "httpapi").Logger(),
	}
}

// Mount регистрирует маршруты API на роутере.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/timezones", h.timezones)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/stats/progress", h.progress)
			r.Get("/stats/speed", h.speed)
			r.Get("/stats/summary", h.summary)
			r.Get("/stats/heatmap", h.heatmap)
			r.Put("/timezone", h.updateTimezone)
		})
	})
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.stats.Progress(r.Context(), chi.URLParam(r, "userID"), f)
	h.respond(w, r, out, err)
}

func (h *Handler) speed(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.stats.Speed(r.Context(), chi.URLParam(r, "userID"), f)
	h.respond(w, r, out, err)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	out, err := h.stats.Summary(r.Context(), chi.URLParam(r, "userID"), f)
	h.respond(w, r, out, err)
}

func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.Heatmap(r.Context(), chi.URLParam(r, "userID"), r.URL.Query().Get("tz"))
	h.respond(w, r, out, err)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

func (h *Handler) updateTimezone(w http.ResponseWriter, r *http.Request) {
	var body timezoneRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, errors.New("некорректное тело запроса"))
		return
	}
	normalized, err := h.prefs.UpdateTimezone(r.Context(), chi.URLParam(r, "userID"), body.Timezone)
	h.respond(w, r, timezoneRequest{Timezone: normalized}, err)
}

func (h *Handler) timezones(w http.ResponseWriter, _ *http.Request) {
	httpinfra.WriteJSON(w, http.StatusOK, map[string]any{"timezones": h.prefs.Timezones(h.clock.Now())})
}

func (h *Handler) filter(w http.ResponseWriter, r *http.Request) (stats.Filter, bool) {
	q := r.URL.Query()
	f, err := stats.ParseFilter(stats.RawFilter{
		Timeframe: q.Get("timeframe"),
		Metric:    q.Get("metric"),
		Type:      q.Get("type"),
		Timezone:  q.Get("tz"),
		Start:     q.Get("start"),
		End:       q.Get("end"),
		Locale:    q.Get("locale"),
	})
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, err)
		return stats.Filter{}, false
	}
	return f, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, out any, err error) {
	if err == nil {
		httpinfra.WriteJSON(w, http.StatusOK, out)
		return
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Str("path", r.URL.Path).Msg("ошибка обработки запроса")
	}
	if status == http.StatusBadGateway {
		err = errors.New("no data")
	}
	httpinfra.WriteError(w, status, err)
}

// StatusFor сопоставляет ошибку сервисов HTTP-статусу.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, stats.ErrInvalidFilter), errors.Is(err, tzconv.ErrInvalidTimezone):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, stats.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
