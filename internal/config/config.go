package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the per-request timeout applied when none is configured.
const DefaultTimeout = 10 * time.Second

// DefaultQueryParam is the query parameter the generated value is written to.
const DefaultQueryParam = "q"

// RunConfig is the immutable configuration of a single load-test run.
type RunConfig struct {
	TargetURL   string        `mapstructure:"target" json:"target"`
	Concurrency int           `mapstructure:"concurrency" json:"concurrency"`
	Duration    time.Duration `mapstructure:"duration" json:"duration"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	QueryParam  string        `mapstructure:"query_param" json:"query_param,omitempty"`
}

// Config holds the full process configuration: the run parameters plus
// CLI/server concerns layered on top of them.
type Config struct {
	Run RunConfig `mapstructure:",squash"`

	NamesFile   string        `mapstructure:"names_file"`
	JSONOutput  bool          `mapstructure:"json_output"`
	Dashboard   bool          `mapstructure:"dashboard"`
	LogErrors   bool          `mapstructure:"log_errors"`
	HistoryFile string        `mapstructure:"history_file"`
	Listen      string        `mapstructure:"listen"`
	ConfigFile  string        `mapstructure:"-"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig controls optional OTLP trace export for outbound requests.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether trace export is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ValidationError aggregates every configuration issue found in one pass.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns a copy of the individual validation issues.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Normalize fills defaulted fields. Safe to call on an already normalized config.
func (c *RunConfig) Normalize() {
	c.TargetURL = strings.TrimSpace(c.TargetURL)
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.QueryParam) == "" {
		c.QueryParam = DefaultQueryParam
	}
}

// Validate checks the run parameters and reports every issue at once.
// A run must never start from an invalid config.
func (c RunConfig) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target URL is required")
	} else {
		u, err := url.Parse(target)
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("target URL is invalid: %v", err))
		case !u.IsAbs():
			issues = append(issues, "target URL must be absolute")
		case u.Scheme != "http" && u.Scheme != "https":
			issues = append(issues, fmt.Sprintf("target URL scheme %q is not supported (use http or https)", u.Scheme))
		case u.Host == "":
			issues = append(issues, "target URL is missing a host")
		}
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be at least 1")
	}
	if c.Duration <= 0 {
		issues = append(issues, "duration must be positive")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must not be negative")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
