package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Puppy4C/httprequest2/internal/metrics"
)

func TestExecuteSuccessSetsQueryParam(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	exec, err := New(srv.URL, "q", 2*time.Second)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	out := exec.Execute(context.Background(), "张伟")
	if !out.Success() {
		t.Fatalf("expected success, got err %v", out.Err)
	}
	if out.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", out.StatusCode)
	}
	if out.Latency <= 0 {
		t.Fatal("latency not measured")
	}
	if gotQuery != "张伟" {
		t.Fatalf("query param: %q", gotQuery)
	}
	if out.BodySnippet != "ok" {
		t.Fatalf("body snippet: %q", out.BodySnippet)
	}
}

func TestExecuteOverwritesExistingQueryParam(t *testing.T) {
	var gotQuery []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()["q"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec, err := New(srv.URL+"/search?q=old&page=2", "q", 2*time.Second)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	out := exec.Execute(context.Background(), "new")
	if !out.Success() {
		t.Fatalf("expected success, got %v", out.Err)
	}
	if len(gotQuery) != 1 || gotQuery[0] != "new" {
		t.Fatalf("q not overwritten: %v", gotQuery)
	}
}

func TestExecuteNonSuccessStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	exec, err := New(srv.URL, "q", 2*time.Second)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	out := exec.Execute(context.Background(), "x")
	if out.Success() {
		t.Fatal("expected failure for 500")
	}
	if out.Kind != metrics.KindHTTPStatus {
		t.Fatalf("kind: %s", out.Kind)
	}
	if out.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: %d", out.StatusCode)
	}
	var httpErr *HTTPError
	if !errors.As(out.Err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError, got %v", out.Err)
	}
}

func TestExecuteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close() // nothing listens here anymore

	exec, err := New(target, "q", time.Second)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	out := exec.Execute(context.Background(), "x")
	if out.Success() {
		t.Fatal("expected failure")
	}
	if out.Kind != metrics.KindConnection {
		t.Fatalf("kind: %s", out.Kind)
	}
	if out.StatusCode != 0 {
		t.Fatalf("status should be unset, got %d", out.StatusCode)
	}
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	exec, err := New(srv.URL, "q", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	start := time.Now()
	out := exec.Execute(context.Background(), "x")
	elapsed := time.Since(start)

	if out.Success() {
		t.Fatal("expected timeout failure")
	}
	if out.Kind != metrics.KindTimeout {
		t.Fatalf("kind: %s (err %v)", out.Kind, out.Err)
	}
	if elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Fatalf("timeout not enforced near configured bound: %s", elapsed)
	}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api/search", "q", time.Second); err == nil {
		t.Fatal("expected error for relative URL")
	}
}
