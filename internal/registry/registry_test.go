package registry_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/registry"
	"github.com/Puppy4C/httprequest2/internal/runner"
)

func newTargetServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCfg(target string, duration time.Duration) config.RunConfig {
	return config.RunConfig{
		TargetURL:   target,
		Concurrency: 2,
		Duration:    duration,
		Timeout:     time.Second,
	}
}

func waitCompleted(t *testing.T, reg *registry.Registry, id string) runner.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := reg.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if status.State == runner.StateCompleted {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run never completed")
	return runner.Status{}
}

func TestStartRunAndComplete(t *testing.T) {
	srv := newTargetServer(t)
	reg := registry.New(registry.Options{})

	id, err := reg.Start(runCfg(srv.URL, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id == "" {
		t.Fatal("empty run ID")
	}

	status := waitCompleted(t, reg, id)
	if status.Stats.Total == 0 {
		t.Fatal("no requests recorded")
	}
	if status.Stats.Total != status.Stats.Successes {
		t.Fatalf("expected all successes: %+v", status.Stats)
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	reg := registry.New(registry.Options{})

	_, err := reg.Start(config.RunConfig{TargetURL: "not-a-url", Concurrency: 0, Duration: 0})
	var vErr config.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(reg.List()) != 0 {
		t.Fatal("no run should be registered on validation failure")
	}
}

func TestStartWhileActiveRejected(t *testing.T) {
	srv := newTargetServer(t)
	reg := registry.New(registry.Options{})

	id, err := reg.Start(runCfg(srv.URL, 2*time.Second))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	before, err := reg.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if _, err := reg.Start(runCfg(srv.URL, time.Second)); !errors.Is(err, registry.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	// The rejected start must not disturb the active run.
	after, err := reg.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if after.Stats.Total < before.Stats.Total {
		t.Fatalf("stats regressed: before=%d after=%d", before.Stats.Total, after.Stats.Total)
	}

	if err := reg.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitCompleted(t, reg, id)

	// Once the first run completed, a new one may start.
	if _, err := reg.Start(runCfg(srv.URL, 50*time.Millisecond)); err != nil {
		t.Fatalf("start after completion: %v", err)
	}
}

func TestStopUnknownRun(t *testing.T) {
	reg := registry.New(registry.Options{})
	if err := reg.Stop("01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := reg.Status("nope"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveLifecycle(t *testing.T) {
	srv := newTargetServer(t)
	reg := registry.New(registry.Options{})

	id, err := reg.Start(runCfg(srv.URL, time.Second))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := reg.Remove(id); !errors.Is(err, registry.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning for active run, got %v", err)
	}

	if err := reg.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitCompleted(t, reg, id)

	if err := reg.Remove(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := reg.Remove(id); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestListOrdersByID(t *testing.T) {
	srv := newTargetServer(t)
	reg := registry.New(registry.Options{})

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := reg.Start(runCfg(srv.URL, 30*time.Millisecond))
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		ids = append(ids, id)
		waitCompleted(t, reg, id)
	}

	infos := reg.List()
	if len(infos) != 3 {
		t.Fatalf("list length: %d", len(infos))
	}
	for i, info := range infos {
		if info.ID != ids[i] {
			t.Fatalf("order mismatch at %d: %s != %s", i, info.ID, ids[i])
		}
	}
}
