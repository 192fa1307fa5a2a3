package eventhub

import (
	"context"
	"sync/atomic"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/registry"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// Resolution selects which entries a shared state query may return.
type Resolution int

const (
	// ResolutionAny returns the nearest entry, pending or set.
	ResolutionAny Resolution = iota
	// ResolutionLastSet skips pending entries.
	ResolutionLastSet
)

// PendingResolver promotes one pending shared state entry to set. It can be
// used once; later calls do nothing.
type PendingResolver struct {
	hub     *Hub
	owner   handle
	kind    state.Kind
	version int64
	used    atomic.Bool
}

// Version returns the version the pending entry was created at.
func (p *PendingResolver) Version() int64 {
	return p.version
}

// Resolve sets the pending entry to data. It returns state.StatusSet on the
// first successful call and state.StatusNone otherwise, including after the
// owner has been unregistered.
func (p *PendingResolver) Resolve(data map[string]any) state.Status {
	if p == nil || !p.used.CompareAndSwap(false, true) {
		return state.StatusNone
	}
	rt, ok := p.hub.lookupHandle(p.owner)
	if !ok {
		return state.StatusNone
	}
	return p.hub.updatePending(rt, p.kind, p.version, data)
}

func validKind(kind state.Kind) bool {
	return kind == state.KindStandard || kind == state.KindXDM
}

// versionOf maps a triggering event to a state version. A nil event is
// version 0, the base state visible to every later query.
func versionOf(e *event.Event) int64 {
	if e == nil {
		return 0
	}
	return e.Sequence()
}

// lookup returns the registered runtime for name.
func (h *Hub) lookup(name string) (*componentRuntime, bool) {
	rt, ok := h.components.Get(name)
	if !ok || !rt.registered() {
		return nil, false
	}
	return rt, true
}

// lookupHandle returns the runtime for a registration that is initializing or
// registered.
func (h *Hub) lookupHandle(hd handle) (*componentRuntime, bool) {
	rt, ok := h.components.Get(hd.name)
	if !ok || rt.handle.id != hd.id || rt.lifecycle() == lifecycleUnregistered {
		return nil, false
	}
	return rt, true
}

// CreateSharedState publishes data as name's state at the version of e.
// It returns state.StatusSet on success and state.StatusNone if name is not
// registered or the version is not after the latest stored one. Success
// dispatches a state change event naming the owner.
func (h *Hub) CreateSharedState(kind state.Kind, name string, data map[string]any, e *event.Event) state.Status {
	rt, ok := h.lookup(name)
	if !ok {
		observability.LogSharedStateRejected(h.logger, name, kind.String(), versionOf(e), "not registered")
		return state.StatusNone
	}
	return h.createSharedState(rt, kind, data, e)
}

func (h *Hub) createSharedState(rt *componentRuntime, kind state.Kind, data map[string]any, e *event.Event) state.Status {
	version := versionOf(e)
	if !validKind(kind) || !rt.stores[kind].Set(version, data) {
		observability.LogSharedStateRejected(rt.logger, rt.handle.name, kind.String(), version, "version not after latest")
		return state.StatusNone
	}

	h.stateWritten(rt, kind, version, state.StatusSet)
	return state.StatusSet
}

// CreatePendingSharedState reserves name's state at the version of e. The
// returned resolver fills it in later; readers see state.StatusPending until
// then. It returns nil under the same conditions CreateSharedState fails.
func (h *Hub) CreatePendingSharedState(kind state.Kind, name string, e *event.Event) *PendingResolver {
	rt, ok := h.lookup(name)
	if !ok {
		observability.LogSharedStateRejected(h.logger, name, kind.String(), versionOf(e), "not registered")
		return nil
	}
	return h.createPending(rt, kind, e)
}

func (h *Hub) createPending(rt *componentRuntime, kind state.Kind, e *event.Event) *PendingResolver {
	version := versionOf(e)
	if !validKind(kind) || !rt.stores[kind].SetPending(version) {
		observability.LogSharedStateRejected(rt.logger, rt.handle.name, kind.String(), version, "version not after latest")
		return nil
	}

	observability.LogSharedState(rt.logger, rt.handle.name, kind.String(), version, state.StatusPending.String())
	h.cfg.metrics.RecordSharedState(context.Background(), rt.handle.name, kind.String(), state.StatusPending.String())
	return &PendingResolver{hub: h, owner: rt.handle, kind: kind, version: version}
}

// UpdatePendingSharedState resolves the pending entry at exactly the version
// of e. It is the by-name form of PendingResolver.Resolve and is subject to
// the same resolve-once rule.
func (h *Hub) UpdatePendingSharedState(kind state.Kind, name string, data map[string]any, e *event.Event) state.Status {
	rt, ok := h.lookup(name)
	if !ok || !validKind(kind) {
		return state.StatusNone
	}
	return h.updatePending(rt, kind, versionOf(e), data)
}

func (h *Hub) updatePending(rt *componentRuntime, kind state.Kind, version int64, data map[string]any) state.Status {
	if !rt.stores[kind].UpdatePending(version, data) {
		observability.LogSharedStateRejected(rt.logger, rt.handle.name, kind.String(), version, "no pending entry")
		return state.StatusNone
	}

	h.stateWritten(rt, kind, version, state.StatusSet)
	return state.StatusSet
}

func (h *Hub) stateWritten(rt *componentRuntime, kind state.Kind, version int64, status state.Status) {
	observability.LogSharedState(rt.logger, rt.handle.name, kind.String(), version, status.String())
	h.cfg.metrics.RecordSharedState(context.Background(), rt.handle.name, kind.String(), status.String())
	h.Dispatch(stateChangeEvent(kind, rt.handle.name))
	h.resumeHeld()
}

// resumeHeld retries every event refused by a Gate. Readiness usually
// depends on another component's state, so each write is a chance to
// proceed. Resume is unconditional so a refusal racing with the write is
// retried too.
func (h *Hub) resumeHeld() {
	h.components.Range(func(_ string, rt *componentRuntime) bool {
		rt.mailbox.Resume()
		return true
	})
}

func stateChangeEvent(kind state.Kind, owner string) *event.Event {
	name := event.NameStateChange
	if kind == state.KindXDM {
		name = event.NameXDMStateChange
	}
	return event.New(name, event.TypeHub, event.SourceSharedState, map[string]any{
		event.KeyStateOwner: owner,
	})
}

// GetSharedState resolves name's state as of e, or as of the latest dispatch
// when e is nil. The bool is false if name is not registered.
//
// With barrier set, a set entry is reported as state.StatusPending (value
// kept) while name has not yet processed e. Pending and none results are
// returned unchanged.
func (h *Hub) GetSharedState(kind state.Kind, name string, e *event.Event, barrier bool, resolution Resolution) (state.Entry, bool) {
	if !validKind(kind) {
		return state.Entry{}, false
	}

	version := h.seq.Load()
	if e != nil {
		version = e.Sequence()
	}

	if registry.Key(name) == registry.Key(HubName) {
		return resolve(h.hubStores[kind], version, resolution), true
	}

	rt, ok := h.lookup(name)
	if !ok {
		return state.Entry{}, false
	}

	entry := resolve(rt.stores[kind], version, resolution)
	if barrier && entry.Status == state.StatusSet && rt.mailbox.LastProcessed() < version {
		entry.Status = state.StatusPending
	}
	return entry, true
}

func resolve(store *state.Store, version int64, resolution Resolution) state.Entry {
	if resolution == ResolutionLastSet {
		return store.ResolveLastSet(version)
	}
	return store.Resolve(version)
}

// ClearSharedState drops every entry of name's state of the given kind.
// It reports false if name is not registered.
func (h *Hub) ClearSharedState(kind state.Kind, name string) bool {
	rt, ok := h.lookup(name)
	if !ok || !validKind(kind) {
		return false
	}
	rt.stores[kind].Clear()
	observability.LogSharedState(rt.logger, rt.handle.name, kind.String(), 0, "cleared")
	return true
}
