package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/Puppy4C/httprequest2/internal/metrics"
)

// HistoryEntry is one completed run summary as stored in the history file.
type HistoryEntry struct {
	Target      string        `json:"target"`
	Concurrency int           `json:"concurrency"`
	StartedAt   time.Time     `json:"started_at"`
	Stats       metrics.Stats `json:"stats"`
}

// AppendHistory appends one summary line to a JSON-lines history file. The
// file is guarded by a lock file so concurrent invocations sharing a history
// file cannot interleave writes.
func AppendHistory(path string, entry HistoryEntry) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock history file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("write history entry: %w", err)
	}
	return nil
}

// ReadHistory loads every entry from a JSON-lines history file. A missing
// file yields an empty history.
func ReadHistory(path string) ([]HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var entries []HistoryEntry
	dec := json.NewDecoder(f)
	for dec.More() {
		var entry HistoryEntry
		if err := dec.Decode(&entry); err != nil {
			return entries, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
