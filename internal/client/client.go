package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trade-journal-go/internal/config"
	"trade-journal-go/internal/metrics"
	"trade-journal-go/internal/models"
)

const dateLayout = "2006-01-02"

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError carries the error body returned by the journal server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("journal api: %d %s", e.Status, e.Message)
}

// JournalAPI is the set of journal server operations used by the CLI.
type JournalAPI interface {
	ListTrades(ctx context.Context, date *time.Time) ([]models.Trade, error)
	GetTrade(ctx context.Context, id string) (models.Trade, error)
	AddTrade(ctx context.Context, in models.TradeInput) (TradeResult, error)
	UpdateTrade(ctx context.Context, id string, patch models.TradePatch) (TradeResult, error)
	DeleteTrade(ctx context.Context, id string) error
	TradeMetrics(ctx context.Context, id string) (metrics.Breakdown, error)
	DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error)
	Years(ctx context.Context) ([]int, error)
	Months(ctx context.Context, year int) ([]time.Month, error)
	Days(ctx context.Context, year int, month time.Month) ([]int, error)
	ExportCSV(ctx context.Context) ([]byte, error)
}

// TradeResult is the response to a mutation. Persisted is false when the server
// kept the change in memory but could not write it to storage.
type TradeResult struct {
	Trade     models.Trade `json:"trade"`
	Persisted bool         `json:"persisted"`
	Warning   string       `json:"warning,omitempty"`
}

// Client talks to the journal HTTP API.
// It implements the JournalAPI.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
}

// ensure Client implements the interface
var _ JournalAPI = (*Client)(nil)

// New creates a new journal API client.
func New(cfg *config.Client, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Client{
		client:     client,
		logger:     logger.Named("client"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		maxRetries: maxRetries,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else if ctx.Err() == nil && idempotent(method) {
			// The server may have applied a non-idempotent request before the connection broke.
			shouldRetry = true
		}

		if !shouldRetry || i == c.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, fmt.Errorf("request failed after retries: %w", err)
	}
	return nil, apiError(resp)
}

// idempotent reports whether repeating a request with method cannot apply it twice.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func apiError(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if e, ok := resp.Error().(*APIError); ok && e.Message != "" {
		apiErr.Message = e.Message
	} else {
		apiErr.Message = resp.String()
	}
	return apiErr
}

func (c *Client) newRequest() *resty.Request {
	return c.client.R().SetError(&APIError{})
}

// ListTrades returns every trade, or only those on date when it is set.
func (c *Client) ListTrades(ctx context.Context, date *time.Time) ([]models.Trade, error) {
	var trades []models.Trade
	req := c.newRequest().SetResult(&trades)
	if date != nil {
		req.SetQueryParam("date", date.Format(dateLayout))
	}

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/trades", req); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

func (c *Client) GetTrade(ctx context.Context, id string) (models.Trade, error) {
	var trade models.Trade
	req := c.newRequest().SetResult(&trade).SetPathParam("id", id)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/trades/{id}", req); err != nil {
		return models.Trade{}, fmt.Errorf("failed to get trade %s: %w", id, err)
	}
	return trade, nil
}

func (c *Client) AddTrade(ctx context.Context, in models.TradeInput) (TradeResult, error) {
	var result TradeResult
	req := c.newRequest().
		SetHeader("Content-Type", "application/json").
		SetBody(in).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/trades", req); err != nil {
		return TradeResult{}, fmt.Errorf("failed to add trade: %w", err)
	}
	return result, nil
}

func (c *Client) UpdateTrade(ctx context.Context, id string, patch models.TradePatch) (TradeResult, error) {
	var result TradeResult
	req := c.newRequest().
		SetHeader("Content-Type", "application/json").
		SetPathParam("id", id).
		SetBody(patch).
		SetResult(&result)

	if _, err := c.doRequest(ctx, http.MethodPatch, "/api/trades/{id}", req); err != nil {
		return TradeResult{}, fmt.Errorf("failed to update trade %s: %w", id, err)
	}
	return result, nil
}

func (c *Client) DeleteTrade(ctx context.Context, id string) error {
	req := c.newRequest().SetPathParam("id", id)

	if _, err := c.doRequest(ctx, http.MethodDelete, "/api/trades/{id}", req); err != nil {
		return fmt.Errorf("failed to delete trade %s: %w", id, err)
	}
	return nil
}

func (c *Client) TradeMetrics(ctx context.Context, id string) (metrics.Breakdown, error) {
	var b metrics.Breakdown
	req := c.newRequest().SetPathParam("id", id).SetResult(&b)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/trades/{id}/metrics", req); err != nil {
		return metrics.Breakdown{}, fmt.Errorf("failed to get metrics for trade %s: %w", id, err)
	}
	return b, nil
}

// DailySummary returns nil when the day has no trades.
func (c *Client) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	var summary *models.DailySummary
	req := c.newRequest().SetPathParam("date", date.Format(dateLayout)).SetResult(&summary)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/summary/{date}", req); err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}
	return summary, nil
}

func (c *Client) Years(ctx context.Context) ([]int, error) {
	var years []int
	req := c.newRequest().SetResult(&years)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/calendar/years", req); err != nil {
		return nil, fmt.Errorf("failed to get years: %w", err)
	}
	return years, nil
}

func (c *Client) Months(ctx context.Context, year int) ([]time.Month, error) {
	var months []time.Month
	req := c.newRequest().SetPathParam("year", strconv.Itoa(year)).SetResult(&months)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/calendar/{year}/months", req); err != nil {
		return nil, fmt.Errorf("failed to get months of %d: %w", year, err)
	}
	return months, nil
}

func (c *Client) Days(ctx context.Context, year int, month time.Month) ([]int, error) {
	var days []int
	req := c.newRequest().
		SetPathParam("year", strconv.Itoa(year)).
		SetPathParam("month", strconv.Itoa(int(month))).
		SetResult(&days)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/calendar/{year}/{month}/days", req); err != nil {
		return nil, fmt.Errorf("failed to get days of %d-%02d: %w", year, month, err)
	}
	return days, nil
}

// ExportCSV downloads every trade as CSV.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	req := c.newRequest().SetHeader("Accept", "text/csv")

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/export.csv", req)
	if err != nil {
		return nil, fmt.Errorf("failed to export trades: %w", err)
	}
	return resp.Body(), nil
}
