package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Severity grades an error event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Metrics is the snapshot computed at the end of each aggregation window.
type Metrics struct {
	ResponseTime float64 `json:"responseTime"`
	CacheHitRate float64 `json:"cacheHitRate"`
	ErrorRate    float64 `json:"errorRate"`
	APICalls     int64   `json:"apiCalls"`
}

// ErrorEvent is one recorded failure.
type ErrorEvent struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Context   map[string]string `json:"context,omitempty"`
	Severity  Severity          `json:"severity"`
}

// Health summarises service liveness for the admin panel.
type Health struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Uptime    float64     `json:"uptime"`
	Metrics   Metrics     `json:"metrics"`
	LastError *ErrorEvent `json:"lastError,omitempty"`
	Version   string      `json:"version"`
}

// CriticalHook receives critical-severity events for external reporting.
type CriticalHook func(ErrorEvent)

// Options tune the aggregator.
type Options struct {
	SnapshotInterval time.Duration
	MaxErrorEvents   int
	MaxSamples       int
	StartTime        time.Time
	Version          string
	Clock            func() time.Time
	OnCritical       CriticalHook
}

// Aggregator keeps rolling API-call counters, computes periodic metric
// snapshots, and retains a bounded error log. Counters reset after every
// snapshot; GetMetrics always reports the previous window.
type Aggregator struct {
	opts   Options
	logger zerolog.Logger
	clock  func() time.Time

	mu        sync.Mutex
	total     int64
	errored   int64
	cacheHits int64
	samples   []float64
	metrics   Metrics
	events    []ErrorEvent
}

// New constructs an Aggregator.
func New(opts Options, logger zerolog.Logger) *Aggregator {
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = time.Minute
	}
	if opts.MaxErrorEvents <= 0 {
		opts.MaxErrorEvents = 1000
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 3600
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if opts.StartTime.IsZero() {
		opts.StartTime = clock()
	}

	return &Aggregator{
		opts:   opts,
		logger: logger.With().Str("component", "monitoring").Logger(),
		clock:  clock,
	}
}

// TrackAPICall records one call outcome in the current window.
func (a *Aggregator) TrackAPICall(duration time.Duration, cacheHit, isError bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if isError {
		a.errored++
	}
	if cacheHit {
		a.cacheHits++
	}
	a.samples = append(a.samples, float64(duration.Milliseconds()))
	if len(a.samples) > a.opts.MaxSamples {
		a.samples = a.samples[len(a.samples)-a.opts.MaxSamples:]
	}
}

// TrackCacheHit records a cache-served read in the current window. No
// network round trip happened, so it contributes no latency sample.
func (a *Aggregator) TrackCacheHit() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.cacheHits++
}

// Snapshot recomputes the metrics from the counters gathered since the
// previous snapshot and resets them.
func (a *Aggregator) Snapshot() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()

	var avg float64
	if len(a.samples) > 0 {
		var sum float64
		for _, s := range a.samples {
			sum += s
		}
		avg = sum / float64(len(a.samples))
	}

	var cacheHitRate, errorRate float64
	if a.total > 0 {
		cacheHitRate = float64(a.cacheHits) / float64(a.total) * 100
		errorRate = float64(a.errored) / float64(a.total) * 100
	}

	a.metrics = Metrics{
		ResponseTime: avg,
		CacheHitRate: cacheHitRate,
		ErrorRate:    errorRate,
		APICalls:     a.total,
	}

	a.total = 0
	a.errored = 0
	a.cacheHits = 0
	a.samples = a.samples[:0]

	return a.metrics
}

// Run recomputes snapshots on the configured interval until ctx ends.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.opts.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m := a.Snapshot()
			a.logger.Debug().
				Float64("response_time_ms", m.ResponseTime).
				Float64("cache_hit_rate", m.CacheHitRate).
				Float64("error_rate", m.ErrorRate).
				Int64("api_calls", m.APICalls).
				Msg("metrics snapshot computed")
		}
	}
}

// GetMetrics returns the last computed snapshot.
func (a *Aggregator) GetMetrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// LogError appends a timestamped event to the bounded error log. Critical
// events additionally invoke the external hook.
func (a *Aggregator) LogError(event ErrorEvent) {
	event.Timestamp = a.clock()

	a.mu.Lock()
	a.events = append(a.events, event)
	if len(a.events) > a.opts.MaxErrorEvents {
		a.events = a.events[len(a.events)-a.opts.MaxErrorEvents:]
	}
	a.mu.Unlock()

	if event.Severity == SeverityCritical {
		a.logger.Error().
			Str("code", event.Code).
			Str("message", event.Message).
			Msg("critical error recorded")
		if a.opts.OnCritical != nil {
			a.opts.OnCritical(event)
		}
	}
}

// RecentErrors returns the retained events, optionally filtered by exact
// severity. Pass the empty severity for all events.
func (a *Aggregator) RecentErrors(severity Severity) []ErrorEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	if severity == "" {
		out := make([]ErrorEvent, len(a.events))
		copy(out, a.events)
		return out
	}

	out := make([]ErrorEvent, 0)
	for _, e := range a.events {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// HealthStatus derives liveness from the last snapshot's error rate.
func (a *Aggregator) HealthStatus() Health {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := "healthy"
	if a.metrics.ErrorRate >= 5 {
		status = "degraded"
	}

	health := Health{
		Status:    status,
		Timestamp: a.clock(),
		Uptime:    a.clock().Sub(a.opts.StartTime).Seconds(),
		Metrics:   a.metrics,
		Version:   a.opts.Version,
	}
	if len(a.events) > 0 {
		last := a.events[len(a.events)-1]
		health.LastError = &last
	}
	return health
}
