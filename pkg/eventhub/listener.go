package eventhub

import (
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// ListenerFunc receives events delivered to a component.
type ListenerFunc func(e *event.Event)

// ResponseFunc receives the response to a trigger event, or
// ErrCallbackTimeout if none arrived before the deadline. It is called
// exactly once.
type ResponseFunc func(resp *event.Event, err error)

type listenerKind int

const (
	listenerTyped listenerKind = iota
	listenerWildcard
	listenerResponse
)

// listenerEntry is one registration. Fields beyond kind are meaningful only
// for the kinds noted.
type listenerEntry struct {
	kind listenerKind

	// typed
	eventType string
	source    string

	// typed, wildcard
	onEvent ListenerFunc

	// response
	triggerID  string
	deadline   time.Duration
	onResponse ResponseFunc
	timer      *time.Timer
}

func newEventListener(eventType, source string, fn ListenerFunc) *listenerEntry {
	if eventType == event.Wildcard && source == event.Wildcard {
		return &listenerEntry{kind: listenerWildcard, onEvent: fn}
	}
	return &listenerEntry{
		kind:      listenerTyped,
		eventType: eventType,
		source:    source,
		onEvent:   fn,
	}
}

func newResponseListener(triggerID string, deadline time.Duration, fn ResponseFunc) *listenerEntry {
	return &listenerEntry{
		kind:       listenerResponse,
		triggerID:  triggerID,
		deadline:   deadline,
		onResponse: fn,
	}
}

// matches reports whether l should receive e.
func (l *listenerEntry) matches(e *event.Event) bool {
	switch l.kind {
	case listenerTyped:
		return !e.IsResponse() && e.Type() == l.eventType && e.Source() == l.source
	case listenerWildcard:
		return true
	case listenerResponse:
		return e.ResponseID() == l.triggerID
	default:
		return false
	}
}

// notify delivers e to l. A nil e with a non-nil err reports a failed
// response listener.
func (l *listenerEntry) notify(e *event.Event, err error) {
	switch l.kind {
	case listenerTyped, listenerWildcard:
		l.onEvent(e)
	case listenerResponse:
		l.onResponse(e, err)
	}
}
