// Package executor issues individual GET requests against the target URL and
// classifies their outcomes. It performs exactly one attempt per call;
// anything resembling retry policy belongs to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Puppy4C/httprequest2/internal/metrics"
	"github.com/Puppy4C/httprequest2/internal/tracing"
)

const maxBodyReadSize = 1024 * 1024

// HTTPError represents a non-2xx response with status details.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Executor performs single GET requests with the generated query value.
type Executor struct {
	client     *http.Client
	target     *url.URL
	queryParam string
	tracing    *tracing.Provider
}

// Option customizes an Executor.
type Option func(*Executor)

// WithTracing attaches a tracing provider so each request gets a client span.
func WithTracing(provider *tracing.Provider) Option {
	return func(e *Executor) { e.tracing = provider }
}

// WithClient overrides the HTTP client, mainly for tests.
func WithClient(client *http.Client) Option {
	return func(e *Executor) { e.client = client }
}

// New creates an Executor for the given absolute target URL. queryParam is the
// query key the generated value is written to; timeout bounds each request.
func New(target, queryParam string, timeout time.Duration, opts ...Option) (*Executor, error) {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("target URL %q must be absolute", target)
	}
	if strings.TrimSpace(queryParam) == "" {
		queryParam = "q"
	}

	e := &Executor{
		client:     NewClient(timeout),
		target:     u,
		queryParam: queryParam,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute issues one GET with the query parameter set to value and classifies
// the result. The request context is derived from ctx only for tracing; the
// per-request timeout comes from the client so an expiring run deadline does
// not abort an in-flight request.
func (e *Executor) Execute(ctx context.Context, value string) metrics.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	reqURL := *e.target
	query := reqURL.Query()
	query.Set(e.queryParam, value)
	reqURL.RawQuery = query.Encode()

	ctx, span := e.tracing.StartRequestSpan(ctx, reqURL.Host)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		out := metrics.Outcome{Latency: time.Since(start), Err: err, Kind: metrics.KindConnection}
		tracing.EndSpan(span, err)
		return out
	}
	e.tracing.InjectHeaders(ctx, req.Header)

	resp, err := e.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		out := metrics.Outcome{Latency: latency, Err: err, Kind: classify(err)}
		tracing.EndSpan(span, err)
		return out
	}
	defer resp.Body.Close()

	// Read a bounded snippet for display, then drain so the connection is reusable.
	snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	if readErr != nil {
		snippet = nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	out := metrics.Outcome{
		StatusCode:  resp.StatusCode,
		Latency:     latency,
		BodySnippet: strings.TrimSpace(string(snippet)),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Err = &HTTPError{StatusCode: resp.StatusCode, Body: out.BodySnippet}
		out.Kind = metrics.KindHTTPStatus
	}
	tracing.EndSpan(span, out.Err)
	return out
}

// classify maps a transport error to its failure kind.
func classify(err error) metrics.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return metrics.KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return metrics.KindTimeout
	}
	return metrics.KindConnection
}

// NewClient builds an HTTP client tuned for sustained concurrent load.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
