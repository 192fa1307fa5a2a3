package eventhub

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// API is a component's view of the hub. It identifies the component by its
// registration handle; once the component is unregistered every call fails
// quietly.
type API struct {
	hub    *Hub
	handle handle
	logger *slog.Logger
}

func newAPI(h *Hub, rt *componentRuntime) *API {
	return &API{hub: h, handle: rt.handle, logger: rt.logger}
}

// Name returns the name the component was registered under.
func (a *API) Name() string {
	return a.handle.name
}

// Logger returns a logger tagged with the component name.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Services returns the collaborators shared by the hub.
func (a *API) Services() Services {
	return a.hub.Services()
}

// RegisterListener delivers events with exactly this type and source to fn.
// Response events are never delivered to typed listeners. Passing
// event.Wildcard for both registers a wildcard listener.
func (a *API) RegisterListener(eventType, source string, fn ListenerFunc) bool {
	if fn == nil {
		return false
	}
	rt, ok := a.hub.lookupHandle(a.handle)
	if !ok {
		return false
	}
	rt.addListener(newEventListener(eventType, source, fn))
	return true
}

// RegisterWildcardListener delivers every event, including responses, to fn.
func (a *API) RegisterWildcardListener(fn ListenerFunc) bool {
	return a.RegisterListener(event.Wildcard, event.Wildcard, fn)
}

// RegisterResponseListener is Hub.RegisterResponseListener.
func (a *API) RegisterResponseListener(trigger *event.Event, timeout time.Duration, fn ResponseFunc) func() bool {
	return a.hub.RegisterResponseListener(trigger, timeout, fn)
}

// Dispatch is Hub.Dispatch.
func (a *API) Dispatch(e *event.Event) *event.Event {
	return a.hub.Dispatch(e)
}

// CreateSharedState publishes the component's own state at the version of e.
func (a *API) CreateSharedState(kind state.Kind, data map[string]any, e *event.Event) state.Status {
	rt, ok := a.hub.lookupHandle(a.handle)
	if !ok {
		observability.LogSharedStateRejected(a.logger, a.handle.name, kind.String(), versionOf(e), "not registered")
		return state.StatusNone
	}
	return a.hub.createSharedState(rt, kind, data, e)
}

// CreatePendingSharedState reserves the component's own state at the version
// of e.
func (a *API) CreatePendingSharedState(kind state.Kind, e *event.Event) *PendingResolver {
	rt, ok := a.hub.lookupHandle(a.handle)
	if !ok {
		return nil
	}
	return a.hub.createPending(rt, kind, e)
}

// GetSharedState is Hub.GetSharedState.
func (a *API) GetSharedState(kind state.Kind, name string, e *event.Event, barrier bool, resolution Resolution) (state.Entry, bool) {
	return a.hub.GetSharedState(kind, name, e, barrier, resolution)
}

// ClearSharedState drops the component's own state of the given kind.
func (a *API) ClearSharedState(kind state.Kind) bool {
	rt, ok := a.hub.lookupHandle(a.handle)
	if !ok || !validKind(kind) {
		return false
	}
	rt.stores[kind].Clear()
	return true
}

// StopEvents pauses delivery to the component after the in-flight event.
// Events keep queuing.
func (a *API) StopEvents() {
	if rt, ok := a.hub.lookupHandle(a.handle); ok {
		rt.stopEvents()
	}
}

// StartEvents resumes delivery paused by StopEvents. Before the hub starts it
// only clears the pause.
func (a *API) StartEvents() {
	rt, ok := a.hub.lookupHandle(a.handle)
	if !ok {
		return
	}
	rt.startEvents(a.hub)
}

// Resume retries an event the component's Gate refused.
func (a *API) Resume() {
	if rt, ok := a.hub.lookupHandle(a.handle); ok {
		rt.mailbox.Resume()
	}
}

// Unregister removes the component from the hub.
func (a *API) Unregister() <-chan Result {
	return a.hub.unregisterAsync(a.handle.name, a.handle.id)
}
