package metrics

import "time"

// ErrorKind classifies a failed request attempt.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindHTTPStatus ErrorKind = "http_status"
)

// Outcome is the result of a single request attempt. It is folded into the
// Collector immediately after it is produced and not retained individually.
type Outcome struct {
	StatusCode  int
	Latency     time.Duration
	Err         error
	Kind        ErrorKind
	BodySnippet string
}

// Success reports whether the attempt counts as successful. Non-2xx responses
// carry an error and therefore count as failures, matching the 2xx-only
// success policy applied throughout.
func (o Outcome) Success() bool {
	return o.Err == nil
}
