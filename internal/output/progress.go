package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Puppy4C/httprequest2/internal/metrics"
)

// ProgressReporter displays real-time progress updates on a single rewritten
// terminal line.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			elapsed := time.Since(p.start)
			stats := p.collector.Stats(elapsed)
			line := fmt.Sprintf("\relapsed=%ds | total=%d | success=%d | failure=%d | avg=%.1fms | rps=%.1f",
				int(elapsed.Seconds()), stats.Total, stats.Successes, stats.Failures,
				stats.MeanLatencyMs, stats.RequestsPerSec)
			if last := stats.LastResponse; last != nil {
				if last.StatusCode > 0 {
					line += fmt.Sprintf(" | last=%d", last.StatusCode)
				} else if last.Error != "" {
					line += " | last=err"
				}
			}
			fmt.Fprint(p.writer, line)
		case <-p.done:
			return
		}
	}
}
