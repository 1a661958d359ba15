package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/metrics"
	"github.com/Puppy4C/httprequest2/internal/runner"
)

// fakeExecutor simulates performing a request with fixed latency.
type fakeExecutor struct {
	latency time.Duration
	fail    bool
	calls   int64
}

func (f *fakeExecutor) Execute(_ context.Context, _ string) metrics.Outcome {
	atomic.AddInt64(&f.calls, 1)
	if f.latency > 0 {
		time.Sleep(f.latency)
	}
	latency := f.latency
	if latency == 0 {
		latency = time.Microsecond
	}
	if f.fail {
		return metrics.Outcome{Latency: latency, Err: errors.New("connection refused"), Kind: metrics.KindConnection}
	}
	return metrics.Outcome{StatusCode: 200, Latency: latency}
}

func testConfig(concurrency int, duration time.Duration) config.RunConfig {
	return config.RunConfig{
		TargetURL:   "http://localhost:9999/echo",
		Concurrency: concurrency,
		Duration:    duration,
		Timeout:     time.Second,
	}
}

func newRunner(t *testing.T, fake *fakeExecutor, cfg config.RunConfig) *runner.Runner {
	t.Helper()
	r, err := runner.New(runner.Options{Config: cfg, Executor: fake})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r
}

func TestRunnerCompletesAtDeadline(t *testing.T) {
	fake := &fakeExecutor{latency: time.Millisecond}
	r := newRunner(t, fake, testConfig(5, 100*time.Millisecond))

	start := time.Now()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Wait()
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Fatalf("run ended before the deadline: %s", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("run overshot the deadline by too much: %s", elapsed)
	}
	if r.State() != runner.StateCompleted {
		t.Fatalf("state: %s", r.State())
	}

	stats := r.Status().Stats
	if stats.Total == 0 {
		t.Fatal("expected some requests executed")
	}
	if stats.Total != atomic.LoadInt64(&fake.calls) {
		t.Fatalf("recorded %d, executed %d", stats.Total, fake.calls)
	}
	if stats.Failures != 0 {
		t.Fatalf("unexpected failures: %d", stats.Failures)
	}
}

// TestRunnerDrainsInFlightRequests checks in-flight requests finish naturally
// after the deadline and their outcomes are still recorded.
func TestRunnerDrainsInFlightRequests(t *testing.T) {
	fake := &fakeExecutor{latency: 80 * time.Millisecond}
	r := newRunner(t, fake, testConfig(3, 30*time.Millisecond))

	start := time.Now()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Wait()
	elapsed := time.Since(start)

	if elapsed < 30*time.Millisecond {
		t.Fatalf("ended before deadline: %s", elapsed)
	}
	// Bounded drain: at most one in-flight request per worker past the deadline.
	if elapsed > 30*time.Millisecond+80*time.Millisecond+200*time.Millisecond {
		t.Fatalf("drain took too long: %s", elapsed)
	}

	stats := r.Status().Stats
	if stats.Total != atomic.LoadInt64(&fake.calls) {
		t.Fatalf("in-flight outcome lost: recorded %d, executed %d", stats.Total, fake.calls)
	}
}

func TestStartWhileRunningRejected(t *testing.T) {
	fake := &fakeExecutor{latency: 5 * time.Millisecond}
	r := newRunner(t, fake, testConfig(2, 200*time.Millisecond))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, runner.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	r.Stop()
	r.Wait()

	// A runner is one-shot; restarting a completed run is also rejected.
	if err := r.Start(context.Background()); !errors.Is(err, runner.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning after completion, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fake := &fakeExecutor{latency: time.Millisecond}
	r := newRunner(t, fake, testConfig(4, 10*time.Second))

	start := time.Now()
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	r.Stop()
	r.Stop()
	r.Wait()
	r.Stop() // after completion, still a no-op

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("stop did not end the run promptly: %s", elapsed)
	}
	if r.State() != runner.StateCompleted {
		t.Fatalf("state: %s", r.State())
	}
}

func TestRequestFailuresNeverAbortRun(t *testing.T) {
	fake := &fakeExecutor{latency: time.Millisecond, fail: true}
	r := newRunner(t, fake, testConfig(5, 100*time.Millisecond))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Wait()

	stats := r.Status().Stats
	if stats.Total == 0 {
		t.Fatal("expected requests despite failures")
	}
	if stats.Failures != stats.Total {
		t.Fatalf("expected all failures: total=%d failures=%d", stats.Total, stats.Failures)
	}
	if stats.Successes != 0 {
		t.Fatalf("successes: %d", stats.Successes)
	}
}

// TestStatusSafeDuringRun polls Status concurrently with the workers and
// checks every observed snapshot for the counter invariant.
func TestStatusSafeDuringRun(t *testing.T) {
	fake := &fakeExecutor{latency: time.Millisecond}
	r := newRunner(t, fake, testConfig(10, 150*time.Millisecond))

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	sawRunning := false
	for r.State() != runner.StateCompleted {
		status := r.Status()
		if status.State == runner.StateRunning {
			sawRunning = true
		}
		if status.Stats.Total != status.Stats.Successes+status.Stats.Failures {
			t.Fatalf("torn snapshot: %+v", status.Stats)
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Wait()

	if !sawRunning {
		t.Fatal("never observed the running state")
	}
}

func TestContextCancellationStopsRun(t *testing.T) {
	fake := &fakeExecutor{latency: time.Millisecond}
	r := newRunner(t, fake, testConfig(2, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := runner.New(runner.Options{Config: testConfig(0, time.Second), Executor: &fakeExecutor{}}); err == nil {
		t.Fatal("expected error for zero concurrency")
	}

	var vErr config.ValidationError
	_, err := runner.New(runner.Options{Config: config.RunConfig{}, Executor: &fakeExecutor{}})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := runner.New(runner.Options{Config: testConfig(1, time.Second)}); err == nil {
		t.Fatal("expected error for missing executor")
	}
}
