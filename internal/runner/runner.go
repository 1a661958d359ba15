// Package runner coordinates the fixed pool of closed-loop workers that
// drives a single load-test run.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Puppy4C/httprequest2/internal/metrics"
)

// ErrAlreadyRunning is returned by Start when a run is already in progress.
var ErrAlreadyRunning = errors.New("run already in progress")

// State is the lifecycle state of a Runner.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time view of a run, cheap enough to poll sub-second.
type Status struct {
	State     State
	StartedAt time.Time
	Elapsed   time.Duration
	Stats     metrics.Stats
}

// Runner owns one run: it spawns exactly Concurrency workers at Start, each
// looping value -> request -> record until the deadline passes or Stop is
// called. Cancellation is cooperative and drain-based: a worker finishes its
// in-flight request, records the outcome, and only then exits, so wall time
// may exceed the configured duration by up to one request timeout per worker.
type Runner struct {
	opt       Options
	state     atomic.Int32
	stopOnce  sync.Once
	done      chan struct{}
	finished  chan struct{}
	wg        sync.WaitGroup
	startedAt time.Time
	deadline  time.Time

	mu        sync.Mutex
	stoppedAt time.Time
}

// New validates the options and returns an idle Runner. Configuration errors
// surface here, before any worker starts.
func New(opt Options) (*Runner, error) {
	if err := opt.normalize(); err != nil {
		return nil, err
	}
	return &Runner{
		opt:      opt,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

// Start transitions Idle -> Running and spawns the worker pool. It returns
// immediately; use Wait or Done to observe completion. ctx cancellation is
// treated like Stop.
func (r *Runner) Start(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrAlreadyRunning
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	r.startedAt = time.Now()
	r.deadline = r.startedAt.Add(r.opt.Config.Duration)
	r.mu.Unlock()
	r.opt.Collector.Start()

	r.wg.Add(r.opt.Config.Concurrency)
	for i := 0; i < r.opt.Config.Concurrency; i++ {
		go r.worker(i)
	}

	deadlineTimer := time.AfterFunc(r.opt.Config.Duration, r.signalStop)

	go func() {
		select {
		case <-ctx.Done():
			r.signalStop()
		case <-r.done:
		}
	}()

	go func() {
		r.wg.Wait()
		deadlineTimer.Stop()
		r.signalStop() // all workers gone; make sure done is closed
		r.mu.Lock()
		r.stoppedAt = time.Now()
		r.mu.Unlock()
		r.state.Store(int32(StateCompleted))
		close(r.finished)
	}()

	return nil
}

// worker runs the closed-loop request cycle: the next request is issued only
// after the previous one completed and was recorded.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	src := r.opt.Sources.ForWorker(id)
	for {
		select {
		case <-r.done:
			return
		default:
		}
		if !time.Now().Before(r.deadline) {
			r.signalStop()
			return
		}

		value := src.Next()
		// The request context is deliberately not tied to the run deadline:
		// an in-flight request drains naturally and still gets recorded.
		outcome := r.opt.Executor.Execute(context.Background(), value)
		r.opt.Collector.Record(outcome)
	}
}

// signalStop flips Running -> Stopping and releases the workers. Idempotent.
func (r *Runner) signalStop() {
	r.stopOnce.Do(func() {
		r.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		close(r.done)
	})
}

// Stop requests the run to end after each worker's in-flight request
// completes. Calling it again, or after completion, has no further effect.
func (r *Runner) Stop() {
	r.signalStop()
}

// Wait blocks until every worker has exited and the run is Completed.
func (r *Runner) Wait() {
	<-r.finished
}

// Done returns a channel closed once the run is Completed.
func (r *Runner) Done() <-chan struct{} {
	return r.finished
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Status returns the current state together with a consistent stats snapshot.
// Safe to call concurrently with everything else at any point in the lifecycle.
func (r *Runner) Status() Status {
	state := r.State()
	status := Status{State: state}
	if state == StateIdle {
		status.Stats = r.opt.Collector.Stats(0)
		return status
	}

	r.mu.Lock()
	status.StartedAt = r.startedAt
	if state == StateCompleted {
		status.Elapsed = r.stoppedAt.Sub(r.startedAt)
	} else {
		status.Elapsed = time.Since(r.startedAt)
	}
	r.mu.Unlock()
	status.Stats = r.opt.Collector.Stats(status.Elapsed)
	return status
}

// Collector exposes the run's aggregator for live reporters.
func (r *Runner) Collector() *metrics.Collector {
	return r.opt.Collector
}
