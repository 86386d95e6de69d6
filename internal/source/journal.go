package source

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"
)

// Journal reads entries from a JSON-lines capture journal on disk. The
// platform capture hook appends one JSON entry per message; the engine
// both tails it live and re-scans it during reconciliation.
type Journal struct {
	path string
}

// NewJournal creates a journal provider over the given file.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Scan reads entries received at or after since, oldest first, capped at
// max. A missing journal is an empty scan; an unreadable one is reported
// as ErrUnauthorized so callers soft-disable instead of erroring.
func (j *Journal) Scan(ctx context.Context, since time.Time, max int) ([]Entry, error) {
	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if os.IsPermission(err) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			// Skip torn or malformed lines; the journal is append-only and
			// the writer may be mid-line.
			continue
		}
		if e.ReceivedAt.Before(since) {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].ReceivedAt.Before(entries[b].ReceivedAt)
	})
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	return entries, nil
}
