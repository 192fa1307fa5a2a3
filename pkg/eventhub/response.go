package eventhub

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
)

// responseMatcher holds one-shot response listeners keyed by trigger id.
// Whichever of match, timeout or cancel removes an entry first owns it; the
// other paths find nothing and do nothing.
type responseMatcher struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	mu        sync.Mutex
	byTrigger map[string][]*listenerEntry
	closed    bool
}

func newResponseMatcher(logger *slog.Logger, metrics observability.MetricsRecorder) *responseMatcher {
	return &responseMatcher{
		logger:    logger,
		metrics:   metrics,
		byTrigger: make(map[string][]*listenerEntry),
	}
}

func (m *responseMatcher) add(l *listenerEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.byTrigger[l.triggerID] = append(m.byTrigger[l.triggerID], l)
	if l.deadline > 0 {
		l.timer = time.AfterFunc(l.deadline, func() { m.expire(l) })
	}
	return true
}

// remove detaches l and reports whether it was still attached.
func (m *responseMatcher) remove(l *listenerEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.byTrigger[l.triggerID]
	for i, candidate := range entries {
		if candidate != l {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(m.byTrigger, l.triggerID)
		} else {
			m.byTrigger[l.triggerID] = entries
		}
		if l.timer != nil {
			l.timer.Stop()
		}
		return true
	}
	return false
}

// match hands e to every listener waiting on its trigger.
func (m *responseMatcher) match(e *event.Event) {
	if !e.IsResponse() {
		return
	}

	m.mu.Lock()
	entries := m.byTrigger[e.ResponseID()]
	delete(m.byTrigger, e.ResponseID())
	for _, l := range entries {
		if l.timer != nil {
			l.timer.Stop()
		}
	}
	m.mu.Unlock()

	for _, l := range entries {
		go m.deliver(l, e, nil)
	}
}

func (m *responseMatcher) expire(l *listenerEntry) {
	if !m.remove(l) {
		return
	}
	observability.LogResponseTimeout(m.logger, l.triggerID, l.deadline)
	m.metrics.RecordResponseTimeout(context.Background())
	m.deliver(l, nil, ErrCallbackTimeout)
}

func (m *responseMatcher) deliver(l *listenerEntry, e *event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("response listener panicked",
				slog.String("trigger_id", l.triggerID),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	l.notify(e, err)
}

// close drops every pending listener without notifying it.
func (m *responseMatcher) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, entries := range m.byTrigger {
		for _, l := range entries {
			if l.timer != nil {
				l.timer.Stop()
			}
		}
	}
	m.byTrigger = make(map[string][]*listenerEntry)
}

func (m *responseMatcher) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, entries := range m.byTrigger {
		n += len(entries)
	}
	return n
}

// RegisterResponseListener waits for a response to trigger: an event whose
// ResponseID equals trigger's ID. fn is called exactly once, either with the
// first matching response or with ErrCallbackTimeout once timeout elapses.
// A timeout of zero or less waits indefinitely.
//
// Register before dispatching trigger so a fast responder cannot be missed.
// The returned cancel function detaches the listener without calling fn; it
// reports whether the listener was still waiting.
func (h *Hub) RegisterResponseListener(trigger *event.Event, timeout time.Duration, fn ResponseFunc) (cancel func() bool) {
	if trigger == nil || fn == nil {
		return func() bool { return false }
	}

	l := newResponseListener(trigger.ID(), timeout, fn)
	if !h.responses.add(l) {
		go fn(nil, ErrHubShutdown)
		return func() bool { return false }
	}
	return func() bool { return h.responses.remove(l) }
}

// Request dispatches e and waits for its response. A timeout of zero or less
// uses the configured response timeout.
//
// Example:
//
//	resp, err := hub.Request(ctx, event.New("Get identifiers", "identity", "request.content", nil), 0)
//	if errors.Is(err, eventhub.ErrCallbackTimeout) {
//	    // no component answered
//	}
func (h *Hub) Request(ctx context.Context, e *event.Event, timeout time.Duration) (*event.Event, error) {
	if e == nil {
		return nil, fmt.Errorf("request: nil event")
	}
	if timeout <= 0 {
		timeout = h.cfg.settings.ResponseTimeout
	}

	type response struct {
		e   *event.Event
		err error
	}
	ch := make(chan response, 1)

	cancel := h.RegisterResponseListener(e, timeout, func(resp *event.Event, err error) {
		ch <- response{e: resp, err: err}
	})
	if h.Dispatch(e) == nil {
		cancel()
		return nil, ErrHubShutdown
	}

	select {
	case r := <-ch:
		return r.e, r.err
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}
