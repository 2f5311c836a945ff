package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/oselabs/webrelay/internal/events"
	"github.com/oselabs/webrelay/internal/metrics"
	"github.com/oselabs/webrelay/internal/monitor"
)

const (
	// DefaultTimeout bounds a single HTTP exchange with the relay.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the number of attempts per request.
	DefaultRetries = 3
)

// Client talks to the relay server: dispatching intents, reporting
// events and polling the monitor's query surface.
type Client struct {
	baseURL    string
	apiKey     string
	retries    int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithRetries sets the number of attempts per request. Pass 1 for a
// single attempt with no backoff. Values below 1 are ignored and the
// default stays in effect.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 1 {
			c.retries = n
		}
	}
}

// WithRateLimit caps outgoing dispatches per second.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a relay client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		retries: DefaultRetries,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dispatch relays an intent to the browser agent addressed by target
// and returns the relay's acknowledgement. The round trip is measured
// and reported as a dispatch event when ReportEvent is reachable.
func (c *Client) Dispatch(ctx context.Context, target Target, intent Intent, correlationID string) (*DispatchAck, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("dispatch rate limit wait; %w", err)
		}
	}

	req, err := EncodeDispatch(intent, target, correlationID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var ack DispatchAck
	err = c.doJSON(ctx, http.MethodPost, "/api/dispatch", req, &ack)
	elapsed := time.Since(start)

	metrics.DispatchLatencySeconds.Observe(elapsed.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DispatchRequests.WithLabelValues(string(intent.Action()), outcome).Inc()

	if err != nil {
		return nil, fmt.Errorf("failed to dispatch %s; %w", intent.Action(), err)
	}
	return &ack, nil
}

// Batch is one entry in a SendEvents call.
type Batch struct {
	Target        Target
	Intent        Intent
	CorrelationID string
}

// SendEvents dispatches multiple intents, sequentially by default. With
// stopOnError false a failed dispatch is logged and skipped.
func (c *Client) SendEvents(ctx context.Context, batch []Batch, stopOnError bool) ([]*DispatchAck, error) {
	acks := make([]*DispatchAck, 0, len(batch))
	for _, b := range batch {
		ack, err := c.Dispatch(ctx, b.Target, b.Intent, b.CorrelationID)
		if err != nil {
			if stopOnError {
				return acks, err
			}
			c.logger.Warn("dispatch failed, continuing",
				"action", b.Intent.Action(),
				"error", err,
			)
			continue
		}
		acks = append(acks, ack)
	}
	return acks, nil
}

// ReportEvent posts an integration event to the relay's monitor.
func (c *Client) ReportEvent(ctx context.Context, ev events.IntegrationEvent) error {
	report := EncodeEventReport(ev)
	if err := c.doJSON(ctx, http.MethodPost, "/api/events", report, nil); err != nil {
		return fmt.Errorf("failed to report event; %w", err)
	}
	return nil
}

// PingResult is the outcome of a connectivity check.
type PingResult struct {
	Success bool          `json:"success"`
	Latency time.Duration `json:"latency"`
}

// Ping measures relay reachability. It never returns an error; an
// unreachable relay is a result, not a fault.
func (c *Client) Ping(ctx context.Context) PingResult {
	start := time.Now()
	err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
	return PingResult{
		Success: err == nil,
		Latency: time.Since(start),
	}
}

// Health fetches the monitor's aggregate health report.
func (c *Client) Health(ctx context.Context) (*monitor.HealthReport, error) {
	var report monitor.HealthReport
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// History fetches retained events matching the filter.
func (c *Client) History(ctx context.Context, f monitor.Filter) ([]EventReport, error) {
	path := "/api/history?" + historyQuery(f)
	var out []EventReport
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EnableTrainingMode asks the relay to open a training session for the
// given website. Training requests are served by the relay itself and
// never reach the browser agent.
func (c *Client) EnableTrainingMode(ctx context.Context, website string) (*TrainingAck, error) {
	req := TrainingRequest{
		Website:       website,
		CorrelationID: events.NewCorrelationID(),
	}
	var ack TrainingAck
	if err := c.doJSON(ctx, http.MethodPost, "/api/training/enable", req, &ack); err != nil {
		return nil, fmt.Errorf("failed to enable training mode for %s; %w", website, err)
	}
	return &ack, nil
}

// ResolveBottleneck asks the relay to mark a bottleneck resolved.
// Returns false when the id was unknown.
func (c *Client) ResolveBottleneck(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Resolved bool `json:"resolved"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/bottlenecks/"+id+"/resolve", nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Resolved, nil
}

// doJSON performs one JSON exchange with retries and exponential
// backoff between attempts.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.doJSONOnce(ctx, method, path, body, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		c.logger.Debug("request attempt failed",
			"method", method,
			"path", path,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}
	return lastErr
}

func (c *Client) doJSONOnce(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body; %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request; %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response; %w", err)
	}
	return nil
}

func historyQuery(f monitor.Filter) string {
	q := url.Values{}
	if f.Source != "" {
		q.Set("source", f.Source)
	}
	if f.Target != "" {
		q.Set("target", f.Target)
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	return q.Encode()
}
