package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Puppy4C/httprequest2/internal/api"
	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/dashboard"
	"github.com/Puppy4C/httprequest2/internal/executor"
	"github.com/Puppy4C/httprequest2/internal/metrics"
	"github.com/Puppy4C/httprequest2/internal/namegen"
	"github.com/Puppy4C/httprequest2/internal/output"
	"github.com/Puppy4C/httprequest2/internal/registry"
	"github.com/Puppy4C/httprequest2/internal/runner"
	"github.com/Puppy4C/httprequest2/internal/tracing"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}

	var names []string
	if cfg.NamesFile != "" {
		names, err = namegen.LoadNames(cfg.NamesFile)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	if cfg.Listen != "" {
		return serve(ctx, cfg, names, provider)
	}
	return runOnce(ctx, cfg, names, provider)
}

// serve runs the control API server until interrupted.
func serve(ctx context.Context, cfg *config.Config, names []string, provider *tracing.Provider) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	reg := registry.New(registry.Options{Names: names, Tracing: provider})
	srv := api.NewServer(reg, logger)
	return srv.ListenAndServe(ctx, cfg.Listen)
}

// runOnce performs a single load test from the command line.
func runOnce(ctx context.Context, cfg *config.Config, names []string, provider *tracing.Provider) error {
	if err := cfg.Run.Validate(); err != nil {
		return err
	}

	exec, err := executor.New(cfg.Run.TargetURL, cfg.Run.QueryParam, cfg.Run.Timeout,
		executor.WithTracing(provider))
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	var wrapped runner.Executor = exec
	if cfg.LogErrors {
		wrapped = &loggingExecutor{inner: exec}
	}

	r, err := runner.New(runner.Options{
		Config:    cfg.Run,
		Executor:  wrapped,
		Sources:   namegen.NewFactory(names),
		Collector: collector,
	})
	if err != nil {
		return err
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.TestConfig{
			TargetURL:   cfg.Run.TargetURL,
			Concurrency: cfg.Run.Concurrency,
			Duration:    cfg.Run.Duration,
			Timeout:     cfg.Run.Timeout,
		}, r.Stop)
		if err != nil {
			return err
		}
		dash.Start()
		defer func() {
			if dash != nil {
				dash.Stop()
			}
		}()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stdout)
		progress.Start()
		defer func() {
			if progress != nil {
				progress.Stop()
				fmt.Fprintln(os.Stdout)
			}
		}()
	}

	startedAt := time.Now()
	if err := r.Start(ctx); err != nil {
		return err
	}
	r.Wait()

	status := r.Status()
	stats := status.Stats

	if dash != nil {
		dash.Stop()
		dash = nil
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(os.Stdout)
		progress = nil
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, stats); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, stats)
	}

	if cfg.HistoryFile != "" {
		entry := output.HistoryEntry{
			Target:      cfg.Run.TargetURL,
			Concurrency: cfg.Run.Concurrency,
			StartedAt:   startedAt,
			Stats:       stats,
		}
		if err := output.AppendHistory(cfg.HistoryFile, entry); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	if stats.Failures > 0 {
		return fmt.Errorf("%d requests failed", stats.Failures)
	}
	return nil
}

// loggingExecutor writes each failed request to stderr.
type loggingExecutor struct {
	inner runner.Executor
	mu    sync.Mutex
}

func (l *loggingExecutor) Execute(ctx context.Context, value string) metrics.Outcome {
	out := l.inner.Execute(ctx, value)
	if out.Err != nil {
		l.mu.Lock()
		fmt.Fprintf(os.Stderr, "[httprequest2] request failed: %v\n", out.Err)
		l.mu.Unlock()
	}
	return out
}
