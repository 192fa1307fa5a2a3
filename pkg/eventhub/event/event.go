// Package event defines the immutable event value routed through the hub.
//
// Events carry routing strings (type and source), a string-keyed payload and
// optional response pairing. The hub stamps a sequence number on each event at
// dispatch time; that number is the version axis for every shared state query.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventhub/pkg/eventhub/internal/deepcopy"
)

// Routing constants shared by the hub and components.
const (
	// Wildcard matches every type and source, response events included.
	Wildcard = "eventhub.eventType.wildcard"

	// TypeHub is the type of events emitted by the hub itself.
	TypeHub = "eventhub.eventType.hub"

	// SourceSharedState marks shared state change notifications.
	SourceSharedState = "eventhub.eventSource.sharedState"

	// SourceBooted marks the event dispatched once when the hub starts.
	SourceBooted = "eventhub.eventSource.booted"

	// SourceRequestContent and SourceResponseContent are conventional
	// sources for request/response pairs.
	SourceRequestContent  = "eventhub.eventSource.requestContent"
	SourceResponseContent = "eventhub.eventSource.responseContent"
)

// Names and data keys of hub notification events.
const (
	NameStateChange    = "Shared state change"
	NameXDMStateChange = "Shared state change (XDM)"
	NameHubBooted      = "EventHub booted"

	// KeyStateOwner holds the name of the component whose state changed.
	KeyStateOwner = "stateowner"
)

// Event is an immutable message. All fields are set at construction; the
// sequence number is stamped by the hub on a copy at dispatch.
type Event struct {
	id         string
	name       string
	eventType  string
	source     string
	data       map[string]any
	responseID string
	mask       []string
	timestamp  time.Time
	sequence   int64
}

// Option configures event creation.
type Option func(*Event)

// WithEventID sets a specific event ID (default: random UUID).
func WithEventID(id string) Option {
	return func(e *Event) {
		e.id = id
	}
}

// WithResponseTo pairs the event with the trigger it answers.
func WithResponseTo(trigger *Event) Option {
	return func(e *Event) {
		if trigger != nil {
			e.responseID = trigger.id
		}
	}
}

// WithResponseID pairs the event with a trigger by id.
func WithResponseID(id string) Option {
	return func(e *Event) {
		e.responseID = id
	}
}

// WithMask sets the data keys used to fingerprint the event for history.
// Calling WithMask with no keys fingerprints the whole payload.
func WithMask(keys ...string) Option {
	return func(e *Event) {
		e.mask = append(make([]string, 0, len(keys)), keys...)
	}
}

// WithTimestamp overrides the creation time (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.timestamp = t
	}
}

// New creates an event. The data map is deep-copied; later changes to it by
// the caller are not visible through the event.
func New(name, eventType, source string, data map[string]any, opts ...Option) *Event {
	e := &Event{
		id:        uuid.New().String(),
		name:      name,
		eventType: eventType,
		source:    source,
		data:      CloneMap(data),
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ID returns the unique event identifier.
func (e *Event) ID() string { return e.id }

// Name returns the human readable event name.
func (e *Event) Name() string { return e.name }

// Type returns the routing type.
func (e *Event) Type() string { return e.eventType }

// Source returns the routing source.
func (e *Event) Source() string { return e.source }

// ResponseID returns the id of the trigger event this one answers, if any.
func (e *Event) ResponseID() string { return e.responseID }

// IsResponse reports whether the event is paired with a trigger.
func (e *Event) IsResponse() bool { return e.responseID != "" }

// Timestamp returns when the event was created.
func (e *Event) Timestamp() time.Time { return e.timestamp }

// Sequence returns the hub-assigned sequence number, or 0 if the event was
// never dispatched.
func (e *Event) Sequence() int64 { return e.sequence }

// Mask returns a copy of the history mask. A nil result means the event is
// not recorded in history.
func (e *Event) Mask() []string {
	if e.mask == nil {
		return nil
	}
	return append(make([]string, 0, len(e.mask)), e.mask...)
}

// Data returns a deep copy of the payload.
func (e *Event) Data() map[string]any {
	return CloneMap(e.data)
}

// Value returns a single payload value without copying the whole map.
// Collection values are copied.
func (e *Event) Value(key string) (any, bool) {
	v, ok := e.data[key]
	if !ok {
		return nil, false
	}
	return deepcopy.Clone(v), true
}

// Copy returns a new event with the same identity, routing and sequence but a
// different payload. Preprocessors use it to substitute an event.
func (e *Event) Copy(data map[string]any) *Event {
	c := *e
	c.data = CloneMap(data)
	c.mask = e.Mask()
	return &c
}

// Sequenced returns a copy of e stamped with sequence n. Only the hub should
// call it; components receive already sequenced events.
func Sequenced(e *Event, n int64) *Event {
	c := *e
	c.sequence = n
	return &c
}

// CloneMap deep-copies a payload map. Nested maps and slices, typed or not,
// are copied; values of other types are shared.
func CloneMap(m map[string]any) map[string]any {
	return deepcopy.CloneMap(m)
}
