// Package registry owns the mapping from run IDs to live runners. It replaces
// process-wide mutable run state with an explicit, lockable lifecycle.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/executor"
	"github.com/Puppy4C/httprequest2/internal/namegen"
	"github.com/Puppy4C/httprequest2/internal/runner"
	"github.com/Puppy4C/httprequest2/internal/tracing"
)

// ErrNotFound is returned when no run exists under the given ID.
var ErrNotFound = errors.New("run not found")

// ErrAlreadyRunning mirrors the runner sentinel for callers that only import
// the registry.
var ErrAlreadyRunning = runner.ErrAlreadyRunning

// Options configure a Registry.
type Options struct {
	Names   []string          // optional name list shared by all runs
	Tracing *tracing.Provider // optional; nil disables tracing
}

// Registry tracks runs by ID. At most one run is active at a time; completed
// runs stay queryable under their ID until removed.
type Registry struct {
	opt  Options
	mu   sync.Mutex
	runs map[string]*runner.Runner
}

// New creates an empty Registry.
func New(opt Options) *Registry {
	return &Registry{
		opt:  opt,
		runs: make(map[string]*runner.Runner),
	}
}

// RunInfo pairs a run ID with its current status.
type RunInfo struct {
	ID     string
	Status runner.Status
}

// Start validates cfg, creates a runner, and starts it. It fails with a
// config.ValidationError before anything is created when cfg is invalid, and
// with ErrAlreadyRunning when another run is still active; no partial run is
// ever registered.
func (r *Registry) Start(cfg config.RunConfig) (string, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.runs {
		switch run.State() {
		case runner.StateRunning, runner.StateStopping:
			return "", ErrAlreadyRunning
		}
	}

	exec, err := executor.New(cfg.TargetURL, cfg.QueryParam, cfg.Timeout,
		executor.WithTracing(r.opt.Tracing))
	if err != nil {
		return "", err
	}

	run, err := runner.New(runner.Options{
		Config:   cfg,
		Executor: exec,
		Sources:  namegen.NewFactory(r.opt.Names),
	})
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	if err := run.Start(context.Background()); err != nil {
		return "", err
	}
	r.runs[id] = run
	return id, nil
}

// Stop signals the identified run to drain and stop. Idempotent for runs that
// are already stopping or completed.
func (r *Registry) Stop(id string) error {
	run, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	run.Stop()
	return nil
}

// Status returns the current status of the identified run.
func (r *Registry) Status(id string) (runner.Status, error) {
	run, ok := r.lookup(id)
	if !ok {
		return runner.Status{}, ErrNotFound
	}
	return run.Status(), nil
}

// Get returns the runner registered under id.
func (r *Registry) Get(id string) (*runner.Runner, bool) {
	return r.lookup(id)
}

// Remove deletes a completed run from the registry. Active runs must be
// stopped first.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return ErrNotFound
	}
	switch run.State() {
	case runner.StateRunning, runner.StateStopping:
		return ErrAlreadyRunning
	}
	delete(r.runs, id)
	return nil
}

// List returns every registered run ordered by ID. ULIDs sort by creation time.
func (r *Registry) List() []RunInfo {
	r.mu.Lock()
	ids := make([]string, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	runs := make(map[string]*runner.Runner, len(r.runs))
	for id, run := range r.runs {
		runs[id] = run
	}
	r.mu.Unlock()

	sort.Strings(ids)
	infos := make([]RunInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, RunInfo{ID: id, Status: runs[id].Status()})
	}
	return infos
}

func (r *Registry) lookup(id string) (*runner.Runner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}
