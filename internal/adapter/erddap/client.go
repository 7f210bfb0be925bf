// Package erddap fetches daily heat-stress snapshots from a NOAA ERDDAP
// griddap endpoint.
package erddap

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
	"github.com/couchcryptid/coral-risk-etl/internal/observability"
)

const (
	// DefaultBaseURL is the Coral Reef Watch 5km daily product as CSV.
	DefaultBaseURL = "https://coastwatch.pfeg.noaa.gov/erddap/griddap/NOAA_DHW.csv"

	// DefaultUserAgent looks like a browser; the endpoint throttles obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	varSST = "CRW_SST"
	varDHW = "CRW_DHW"
	varMMM = "CRW_SST_Maximum_Monthly_Mean"
)

var (
	// ErrExhausted is returned when every attempt hit a retryable failure.
	ErrExhausted = errors.New("erddap: attempts exhausted")

	// ErrNoValues is returned when the grid holds no finite cell for a variable.
	ErrNoValues = errors.New("erddap: no finite values")
)

// Options tunes the HTTP behaviour of the client.
type Options struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Client implements pipeline.SnapshotSource against ERDDAP.
type Client struct {
	opts       Options
	bbox       domain.BoundingBox
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      Cache
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an ERDDAP client for bbox. cache may be nil.
func NewClient(opts Options, bbox domain.BoundingBox, cache Cache, logger *slog.Logger, metrics *observability.Metrics) *Client {
	opts = opts.withDefaults()
	c := &Client{
		opts:       opts,
		bbox:       bbox,
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      cache,
		logger:     logger,
		metrics:    metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "erddap",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Snapshot returns the bounding-box mean SST, DHW and MMM for day.
func (c *Client) Snapshot(ctx context.Context, day time.Time) (domain.Snapshot, error) {
	day = domain.TruncateDay(day)
	key := c.cacheKey(day)
	if c.cache != nil {
		if snap, ok := c.cache.Get(ctx, key); ok {
			c.metrics.RemoteCache.WithLabelValues("hit").Inc()
			return snap, nil
		}
		c.metrics.RemoteCache.WithLabelValues("miss").Inc()
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetchWithRetry(ctx, c.queryURL(day))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RemoteRequests.WithLabelValues("breaker_open").Inc()
		}
		return domain.Snapshot{}, fmt.Errorf("snapshot %s: %w", day.Format("2006-01-02"), err)
	}

	snap, err := parseSnapshot(res.([]byte))
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot %s: %w", day.Format("2006-01-02"), err)
	}
	if snap.Date.IsZero() {
		snap.Date = day
	}
	if c.cache != nil {
		c.cache.Set(ctx, key, snap)
	}
	return snap, nil
}

func (c *Client) cacheKey(day time.Time) string {
	return fmt.Sprintf("erddap:%s:%.2f,%.2f,%.2f,%.2f", day.Format("2006-01-02"),
		c.bbox.LatMin, c.bbox.LatMax, c.bbox.LonMin, c.bbox.LonMax)
}

// queryURL builds the griddap selection for the three variables over the box.
func (c *Client) queryURL(day time.Time) string {
	stamp := day.Format("2006-01-02") + "T12:00:00Z"
	dims := fmt.Sprintf("[(%s)][(%s):(%s)][(%s):(%s)]", stamp,
		formatCoord(c.bbox.LatMin), formatCoord(c.bbox.LatMax),
		formatCoord(c.bbox.LonMin), formatCoord(c.bbox.LonMax))
	q := varSST + dims + "," + varDHW + dims + "," + varMMM + dims
	return c.opts.BaseURL + "?" + strings.ReplaceAll(url.QueryEscape(q), "+", "%20")
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type retryableError struct {
	status int
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("erddap status %d", e.status)
}

func (c *Client) fetchWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.RemoteRequests.WithLabelValues("retry").Inc()
			c.logger.Debug("retrying request", "attempt", attempt, "delay", c.opts.RetryDelay, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}

		body, err := c.do(ctx, fullURL)
		if err == nil {
			c.metrics.RemoteRequests.WithLabelValues("success").Inc()
			return body, nil
		}
		if ctx.Err() != nil {
			c.metrics.RemoteRequests.WithLabelValues("error").Inc()
			return nil, ctx.Err()
		}
		lastErr = err
		var re *retryableError
		if !errors.As(err, &re) && !isTransport(err) {
			c.metrics.RemoteRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		c.logger.Warn("erddap request failed", "attempt", attempt, "max_attempts", c.opts.MaxAttempts, "error", err)
	}
	c.metrics.RemoteRequests.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, c.opts.MaxAttempts, lastErr)
}

// transportError marks failures below HTTP (dial, reset, timeout).
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) do(ctx context.Context, fullURL string) ([]byte, error) {
	start := time.Now()
	defer func() { c.metrics.RemoteRequestDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("erddap request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &retryableError{status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("erddap API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// parseSnapshot averages each variable over the finite grid cells of a
// griddap CSV response (header row, then a units row, then data).
func parseSnapshot(body []byte) (domain.Snapshot, error) {
	r := csv.NewReader(strings.NewReader(string(body)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, name := range []string{"time", varSST, varDHW, varMMM} {
		if _, ok := idx[name]; !ok {
			return domain.Snapshot{}, fmt.Errorf("missing column %q", name)
		}
	}
	if _, err := r.Read(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("read units row: %w", err)
	}

	var (
		sst, dhw, mmm []float64
		date          time.Time
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("read row: %w", err)
		}
		if date.IsZero() && idx["time"] < len(row) {
			if t, err := time.Parse(time.RFC3339, row[idx["time"]]); err == nil {
				date = domain.TruncateDay(t.UTC())
			}
		}
		sst = appendFinite(sst, row, idx[varSST])
		dhw = appendFinite(dhw, row, idx[varDHW])
		mmm = appendFinite(mmm, row, idx[varMMM])
	}

	for name, vals := range map[string][]float64{varSST: sst, varDHW: dhw, varMMM: mmm} {
		if len(vals) == 0 {
			return domain.Snapshot{}, fmt.Errorf("%w: %s", ErrNoValues, name)
		}
	}
	return domain.Snapshot{
		Date:   date,
		SST:    stat.Mean(sst, nil),
		DHW:    stat.Mean(dhw, nil),
		MMM:    stat.Mean(mmm, nil),
		Origin: domain.OriginObserved,
	}, nil
}

func appendFinite(dst []float64, row []string, i int) []float64 {
	if i >= len(row) {
		return dst
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return dst
	}
	return append(dst, v)
}
