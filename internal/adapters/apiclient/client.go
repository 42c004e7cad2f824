// Package apiclient читает журнал погружения из REST API трекера.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"
	"github.com/rs/zerolog"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
	"immersion-stats/internal/usecase/tzconv"
)

var userOperations = map[string]bool{"get_user": true, "update_timezone": true}

// ErrUpstream возвращается, когда API трекера отвечает ошибкой.
var ErrUpstream = errors.New("upstream api error")

// Client реализует domain.RecordProvider и domain.UserRepo поверх API трекера.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	attempts   uint
	delay      time.Duration
	cache      *otter.Cache[string, []byte]
	logger     zerolog.Logger
}

var (
	_ domain.RecordProvider = (*Client)(nil)
	_ domain.UserRepo       = (*Client)(nil)
)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithToken добавляет Bearer-токен ко всем запросам.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetry задаёт число попыток и начальную задержку между ними.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.delay = delay
	}
}

// WithCacheTTL включает кеш ответов в памяти процесса. Нулевой TTL отключает кеш.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = otter.Must(&otter.Options[string, []byte]{
			MaximumSize:      10_000,
			InitialCapacity:  256,
			ExpiryCalculator: otter.ExpiryWriting[string, []byte](ttl),
		})
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "apiclient").Logger()
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		attempts:   4,
		delay:      500 * time.Millisecond,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Records реализует domain.RecordProvider.
func (c *Client) Records(ctx context.Context, userID string, since time.Time) ([]domain.ActivityRecord, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}
	var records []domain.ActivityRecord
	endpoint := fmt.Sprintf("/api/users/%s/logs", url.PathEscape(userID))
	if err := c.getCached(ctx, "records", endpoint, query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// DailyTotals реализует domain.RecordProvider.
func (c *Client) DailyTotals(ctx context.Context, userID, timezone string) (domain.BucketedStats, error) {
	query := url.Values{}
	query.Set("timezone", timezone)
	var stats domain.BucketedStats
	endpoint := fmt.Sprintf("/api/users/%s/stats/daily", url.PathEscape(userID))
	if err := c.getCached(ctx, "daily_totals", endpoint, query, &stats); err != nil {
		return domain.BucketedStats{}, err
	}
	if stats.Timezone == "" {
		stats.Timezone = timezone
	}
	if !sameZone(stats.Timezone, timezone) {
		c.logger.Warn().Str("requested", timezone).Str("received", stats.Timezone).Msg("API вернул агрегаты в другом поясе")
	}
	return stats, nil
}

type userPayload struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Timezone string `json:"timezone"`
}

// GetUser реализует domain.UserRepo.
func (c *Client) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var payload userPayload
	endpoint := fmt.Sprintf("/api/users/%s", url.PathEscape(userID))
	if err := c.getCached(ctx, "get_user", endpoint, nil, &payload); err != nil {
		return domain.User{}, err
	}
	if payload.ID == "" {
		payload.ID = userID
	}
	return domain.User{ID: payload.ID, Username: payload.Username, Timezone: payload.Timezone}, nil
}

// UpdateTimezone реализует domain.UserRepo.
func (c *Client) UpdateTimezone(ctx context.Context, userID, timezone string) error {
	endpoint := fmt.Sprintf("/api/users/%s/timezone", url.PathEscape(userID))
	if err := c.send(ctx, "update_timezone", http.MethodPut, endpoint, nil, map[string]string{"timezone": timezone}, nil); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Invalidate(fmt.Sprintf("/api/users/%s", url.PathEscape(userID)))
	}
	return nil
}

func (c *Client) getCached(ctx context.Context, operation, endpoint string, query url.Values, out any) error {
	key := endpoint
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	if c.cache != nil {
		if body, ok := c.cache.GetIfPresent(key); ok {
			return decode(body, out)
		}
	}
	var body []byte
	if err := c.send(ctx, operation, http.MethodGet, endpoint, query, nil, &body); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(key, body)
	}
	return decode(body, out)
}

// send выполняет запрос с повторами на сетевых ошибках, 429 и 5xx. raw получает тело успешного ответа.
func (c *Client) send(ctx context.Context, operation, method, endpoint string, query url.Values, body any, raw *[]byte) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = encoded
	}

	start := time.Now()
	var lastErr error
	err := retry.Do(
		func() error {
			req, err := c.newRequest(ctx, method, endpoint, query, payload)
			if err != nil {
				lastErr = err
				return retry.Unrecoverable(err)
			}
			data, retryable, err := c.do(operation, req)
			if err != nil {
				lastErr = err
				if !retryable {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if raw != nil {
				*raw = data
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Str("operation", operation).Uint("attempt", n+1).Msg("повтор запроса к API")
		}),
	)
	metrics.ObserveNetworkRequest("apiclient", operation, c.baseURL.Host, start, err)
	if err != nil && lastErr != nil && ctx.Err() == nil {
		return lastErr
	}
	return err
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, payload []byte) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.EscapedPath(), "/")
	resolved.RawPath = path.Clean(basePath + endpoint)
	unescaped, err := url.PathUnescape(resolved.RawPath)
	if err != nil {
		return nil, fmt.Errorf("build path: %w", err)
	}
	resolved.Path = unescaped
	if len(query) > 0 {
		resolved.RawQuery = query.Encode()
	}
	var buf io.Reader
	if payload != nil {
		buf = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do выполняет запрос. Второе значение сообщает, имеет ли смысл повтор.
func (c *Client) do(operation string, req *http.Request) ([]byte, bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, false, nil
	}
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return nil, retryable, mapAPIError(operation, resp.StatusCode, data)
}

// mapAPIError переводит ответ API в ошибку. 404 означает отсутствие пользователя только
// для запросов к профилю; для журнала и агрегатов это ошибка источника.
func mapAPIError(operation string, status int, body []byte) error {
	if status == http.StatusNotFound && userOperations[operation] {
		return domain.ErrUserNotFound
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, apiErr.Error)
	}
	return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, strings.TrimSpace(string(body)))
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sameZone сравнивает пояса после нормализации.
func sameZone(received, requested string) bool {
	a, errA := tzconv.Normalize(received)
	b, errB := tzconv.Normalize(requested)
	return errA == nil && errB == nil && a == b
}
