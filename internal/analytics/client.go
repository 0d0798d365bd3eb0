package analytics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBaseURL is the decision service address used when none is configured
const DefaultBaseURL = "http://localhost:8000"

// ApiError is returned for non-2xx answers of the decision service
type ApiError struct {
	StatusCode int
	Status     string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("API error: %s", e.Status)
}

// Client forwards decision requests to the external analytics service.
// Nothing is retried or cached.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// BaseURL returns the service address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BestBuyDate asks for the most profitable purchase date within MonthsAhead months
func (c *Client) BestBuyDate(ctx context.Context, req BuyTimingRequest) (*BuyTimingResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	var res BuyTimingResult
	if err := c.post(ctx, "/strategy/best-buy-date", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DailyDecision asks for today's action
func (c *Client) DailyDecision(ctx context.Context, req DailyDecisionRequest) (*DailyDecisionResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	var res DailyDecisionResult
	if err := c.post(ctx, "/strategy/daily-decision", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// OptimizedDecision compares the emergency, buy-now and wait-three-days plans
func (c *Client) OptimizedDecision(ctx context.Context, req OptimizedDecisionRequest) (*OptimizedDecisionResult, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	var res OptimizedDecisionResult
	if err := c.post(ctx, "/strategy/optimized-decision", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, path string, req, out interface{}) error {
	var body []byte
	var code int
	start := time.Now()
	err := gout.POST(c.baseURL + path).
		WithContext(ctx).
		SetTimeout(c.timeout).
		SetJSON(req).
		BindBody(&body).
		Code(&code).
		Do()
	if err != nil {
		return errors.Wrapf(err, "analytics %s", path)
	}
	zap.L().Debug("analytics call",
		zap.String("path", path),
		zap.Int("status", code),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("namespace", "analytics"),
	)
	if code < 200 || code > 299 {
		return &ApiError{StatusCode: code, Status: http.StatusText(code)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "analytics %s: decode response", path)
	}
	return nil
}
