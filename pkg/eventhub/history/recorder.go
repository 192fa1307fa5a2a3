// Package history records fingerprints of dispatched events.
//
// The hub hands every dispatched event that carries a mask to a Recorder.
// The recorder stores the event's fingerprint (see event.Fingerprint) with a
// timestamp so callers can later ask how many times equivalent data was seen
// within a time window.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Recorder persists event fingerprints.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Record stores the fingerprint of e. Events without a fingerprint
	// (no mask, or no masked keys present) are ignored.
	Record(ctx context.Context, e *event.Event) error

	// Count returns how many records with hash fall in [from, to].
	// A zero to means no upper bound.
	Count(ctx context.Context, hash uint64, from, to time.Time) (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one recorded event.
type Entry struct {
	Hash      uint64
	Type      string
	Source    string
	Timestamp time.Time
}

// TypeCount is the number of records for one event type and source.
type TypeCount struct {
	Type   string
	Source string
	Count  int
}

// Sentinel errors for history operations.
var (
	// ErrRecorderClosed indicates the recorder has been closed.
	ErrRecorderClosed = errors.New("history recorder closed")
)

func entryFor(e *event.Event) (Entry, bool) {
	hash := e.Fingerprint()
	if hash == 0 {
		return Entry{}, false
	}
	ts := e.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	return Entry{
		Hash:      hash,
		Type:      e.Type(),
		Source:    e.Source(),
		Timestamp: ts.UTC(),
	}, true
}

func inWindow(ts, from, to time.Time) bool {
	if ts.Before(from) {
		return false
	}
	return to.IsZero() || !ts.After(to)
}
