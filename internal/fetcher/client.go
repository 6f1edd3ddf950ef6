package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tldwatch/internal/pricing"
)

const defaultBaseURL = "https://tld-price-changes-api.vercel.app/api"

// APIError carries the HTTP status of a failed price API call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("price api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("price api error (%d)", e.Status)
}

// IsRateLimited reports whether err is a 429 from the price API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// Options parameterise the price API client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	RetryDelay time.Duration
	Transport  http.RoundTripper
}

// Client talks to the remote TLD price API. A rate-limited request is
// retried exactly once after a fixed delay; every other failure surfaces
// to the caller unchanged.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a price API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		opts:   opts,
		logger: logger.With().Str("component", "price_api").Logger(),
		client: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		baseURL: baseURL,
	}
}

// PriceChanges fetches the current list of price changes.
func (c *Client) PriceChanges(ctx context.Context) ([]pricing.Record, error) {
	var records []pricing.Record
	if err := c.do(ctx, http.MethodGet, "/price-changes", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Search fetches price changes whose TLD matches the query.
func (c *Client) Search(ctx context.Context, query string) ([]pricing.Record, error) {
	path := "/search?tld=" + url.QueryEscape(query)
	var records []pricing.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// History fetches the price history for one TLD.
func (c *Client) History(ctx context.Context, tld string) ([]pricing.PointRecord, error) {
	path := "/history/" + url.PathEscape(tld)
	var points []pricing.PointRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

type priceResponse struct {
	TLD   string          `json:"tld"`
	Price decimal.Decimal `json:"price"`
}

// Price fetches the single current price for one TLD.
func (c *Client) Price(ctx context.Context, tld string) (decimal.Decimal, error) {
	path := "/price/" + url.PathEscape(tld)
	var res priceResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return decimal.Decimal{}, err
	}
	return res.Price, nil
}

type alertRequest struct {
	TLD string `json:"tld"`
	pricing.PriceAlert
}

// CreateAlert persists an alert rule remotely via POST /alerts.
func (c *Client) CreateAlert(ctx context.Context, tld string, alert pricing.PriceAlert) error {
	body, err := json.Marshal(alertRequest{TLD: tld, PriceAlert: alert})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/alerts", body, nil)
}

// do performs one request, retrying once after the configured delay when
// the API answers 429.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	err := c.doOnce(ctx, method, path, body, out)
	if !IsRateLimited(err) {
		return err
	}

	c.logger.Warn().Str("path", path).Dur("delay", c.opts.RetryDelay).Msg("rate limited; retrying once")

	timer := time.NewTimer(c.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	return c.doOnce(ctx, method, path, body, out)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return &APIError{Status: status, Message: apiErr.Error}
		}
		if apiErr.Message != "" {
			return &APIError{Status: status, Message: apiErr.Message}
		}
	}
	if len(payload) > 0 {
		return &APIError{Status: status, Message: strings.TrimSpace(string(payload))}
	}
	return &APIError{Status: status}
}

var _ PriceAPI = (*Client)(nil)
