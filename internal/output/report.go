package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Puppy4C/httprequest2/internal/metrics"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Total Requests:    %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Requests/sec:      %.2f\n", stats.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, row := range metrics.FlattenStatusCodes(stats.StatusCodes) {
			fmt.Fprintf(w, "  %d: %d\n", row.Code, row.Count)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailures by Kind:")
		for kind, count := range stats.Errors {
			fmt.Fprintf(w, "  %s: %d\n", kind, count)
		}
	}

	if last := stats.LastResponse; last != nil {
		fmt.Fprintln(w, "\nLast Response:")
		if last.StatusCode > 0 {
			fmt.Fprintf(w, "  Status: %d\n", last.StatusCode)
		}
		if last.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", last.Error)
		}
		if last.Body != "" {
			snippet := last.Body
			if len(snippet) > 200 {
				snippet = snippet[:200]
			}
			fmt.Fprintf(w, "  Body: %s\n", snippet)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, stats metrics.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
