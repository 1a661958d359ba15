package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector records per-request outcomes in a thread-safe manner. The write
// path is a single short critical section so the total/success/failure triple
// is never observed torn.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByKind map[ErrorKind]int64
	statusCodes  map[int]int64
	lastResponse *LastResponse
	start        time.Time
}

// LastResponse retains the most recent response (or transport error) for display.
type LastResponse struct {
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Stats represents aggregated metrics at one instant.
type Stats struct {
	Total     int64 `json:"total"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`

	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	Duration    time.Duration `json:"-"`

	RequestsPerSec float64 `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`

	Errors       map[string]int `json:"errors,omitempty"`
	StatusCodes  map[int]int64  `json:"status_codes,omitempty"`
	LastResponse *LastResponse  `json:"last_response,omitempty"`
}

const maxLastBodyBytes = 2000

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByKind: make(map[ErrorKind]int64),
		statusCodes:  make(map[int]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of measurement for rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Record folds one outcome into the aggregate state. Exactly one of the
// success/failure counters is incremented per call, atomically with the
// latency accumulators.
func (c *Collector) Record(out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out.Latency > 0 {
		us := out.Latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += out.Latency

	if c.minLatency == 0 || out.Latency < c.minLatency {
		c.minLatency = out.Latency
	}
	if out.Latency > c.maxLatency {
		c.maxLatency = out.Latency
	}

	if out.StatusCode > 0 {
		c.statusCodes[out.StatusCode]++
	}

	if out.Success() {
		c.successes++
	} else {
		c.failures++
		kind := out.Kind
		if kind == "" {
			kind = KindConnection
		}
		c.errorsByKind[kind]++
	}

	last := &LastResponse{StatusCode: out.StatusCode}
	if out.Err != nil && out.StatusCode == 0 {
		last.Error = out.Err.Error()
	}
	body := out.BodySnippet
	if len(body) > maxLastBodyBytes {
		body = body[:maxLastBodyBytes]
	}
	last.Body = body
	c.lastResponse = last
}

// Stats computes and returns current aggregated statistics as a consistent
// point-in-time copy.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P90LatencyMs = float64(stats.P90Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByKind) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByKind))
		for k, v := range c.errorsByKind {
			stats.Errors[string(k)] = int(v)
		}
	}
	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[int]int64, len(c.statusCodes))
		for code, count := range c.statusCodes {
			stats.StatusCodes[code] = count
		}
	}
	if c.lastResponse != nil {
		last := *c.lastResponse
		stats.LastResponse = &last
	}

	return stats
}

// Elapsed returns the time since measurement started.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}
