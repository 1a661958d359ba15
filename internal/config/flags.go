package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "httprequest2",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Core run flags
	flags.String("target", "", "Target URL to load test")
	flags.IntP("concurrency", "c", 10, "Number of concurrent workers")
	flags.DurationP("duration", "d", 10*time.Second, "How long to run the test (e.g. 30s, 2m)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.String("query-param", DefaultQueryParam, "Query parameter to carry the generated value")

	// Value generation flags
	flags.String("names-file", "", "Path to a name list (plain text or YAML) for generated query values")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("history-file", "", "Append the final run summary to this JSON-lines file")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Server flags
	flags.String("listen", "", "Run as a control server on this address (e.g. :8000) instead of a one-shot test")

	// Tracing flags
	flags.String("trace-endpoint", "", "OTLP endpoint for trace export (empty disables tracing)")
	flags.String("trace-service-name", "", "Service name reported on exported spans")
	flags.String("trace-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("trace-insecure", false, "Skip TLS verification when exporting traces")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
	flags.Bool("trace-propagate", false, "Inject W3C trace context headers into outbound requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error

	stringFlag := func(name string, dst *string) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var val string
		if val, err = fs.GetString(name); err == nil {
			*dst = val
		}
	}
	boolFlag := func(name string, dst *bool) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var val bool
		if val, err = fs.GetBool(name); err == nil {
			*dst = val
		}
	}
	durationFlag := func(name string, dst *time.Duration) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var val time.Duration
		if val, err = fs.GetDuration(name); err == nil {
			*dst = val
		}
	}

	stringFlag("target", &cfg.Run.TargetURL)
	durationFlag("duration", &cfg.Run.Duration)
	durationFlag("timeout", &cfg.Run.Timeout)
	stringFlag("query-param", &cfg.Run.QueryParam)
	if fs.Changed("concurrency") {
		val, cErr := fs.GetInt("concurrency")
		if cErr != nil {
			return cErr
		}
		cfg.Run.Concurrency = val
	}

	stringFlag("names-file", &cfg.NamesFile)
	boolFlag("json-output", &cfg.JSONOutput)
	boolFlag("dashboard", &cfg.Dashboard)
	boolFlag("log-errors", &cfg.LogErrors)
	stringFlag("history-file", &cfg.HistoryFile)
	stringFlag("listen", &cfg.Listen)

	stringFlag("trace-endpoint", &cfg.Tracing.Endpoint)
	stringFlag("trace-service-name", &cfg.Tracing.ServiceName)
	stringFlag("trace-protocol", &cfg.Tracing.Protocol)
	boolFlag("trace-insecure", &cfg.Tracing.Insecure)
	boolFlag("trace-propagate", &cfg.Tracing.Propagate)
	if fs.Changed("trace-sample-rate") {
		val, sErr := fs.GetFloat64("trace-sample-rate")
		if sErr != nil {
			return sErr
		}
		cfg.Tracing.SampleRate = val
	}

	return err
}
