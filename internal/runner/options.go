package runner

import (
	"context"
	"errors"

	"github.com/Puppy4C/httprequest2/internal/config"
	"github.com/Puppy4C/httprequest2/internal/metrics"
	"github.com/Puppy4C/httprequest2/internal/namegen"
)

// Executor abstracts performing a single request attempt.
type Executor interface {
	Execute(ctx context.Context, value string) metrics.Outcome
}

// SourceFactory hands out one value source per worker.
type SourceFactory interface {
	ForWorker(worker int) namegen.Source
}

// Options configure a Runner.
type Options struct {
	Config    config.RunConfig
	Executor  Executor           // request executor (required)
	Sources   SourceFactory      // per-worker value sources
	Collector *metrics.Collector // outcome sink; created when nil
}

func (o *Options) normalize() error {
	o.Config.Normalize()
	if err := o.Config.Validate(); err != nil {
		return err
	}
	if o.Executor == nil {
		return errors.New("executor is required")
	}
	if o.Sources == nil {
		o.Sources = namegen.NewFactory(nil)
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	return nil
}
