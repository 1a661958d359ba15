package output

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe bytes.Buffer for reporter tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHistoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	first := HistoryEntry{
		Target:      "http://localhost:9999/echo",
		Concurrency: 5,
		StartedAt:   time.Now().UTC().Truncate(time.Second),
		Stats:       sampleStats(),
	}
	if err := AppendHistory(path, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	second := first
	second.Concurrency = 10
	if err := AppendHistory(path, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := ReadHistory(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries: %d", len(entries))
	}
	if entries[0].Concurrency != 5 || entries[1].Concurrency != 10 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Stats.Total != 2 {
		t.Fatalf("stats not preserved: %+v", entries[0].Stats)
	}
}

func TestReadHistoryMissingFile(t *testing.T) {
	entries, err := ReadHistory(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected empty history, got %+v", entries)
	}
}

func TestAppendHistoryConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	entry := HistoryEntry{Target: "http://localhost:9999/echo", Concurrency: 1, StartedAt: time.Now()}

	var wg sync.WaitGroup
	const writers = 8
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := AppendHistory(path, entry); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, err := ReadHistory(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != writers {
		t.Fatalf("expected %d entries, got %d", writers, len(entries))
	}
}
