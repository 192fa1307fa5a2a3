package eventhub

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/mailbox"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

type lifecycle int32

const (
	lifecycleInitializing lifecycle = iota
	lifecycleRegistered
	lifecycleUnregistered
)

// handle identifies one registration. A name can be reused after
// unregistering; the id cannot.
type handle struct {
	id   uint64
	name string
}

// componentRuntime is everything the hub keeps for one component.
type componentRuntime struct {
	handle  handle
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	mailbox *mailbox.Mailbox
	stores  [2]*state.Store
	status  atomic.Int32

	// deliveryMu orders paused with the mailbox Start and Stop calls.
	deliveryMu sync.Mutex
	paused     bool // set by API.StopEvents, survives Hub.Start

	mu        sync.RWMutex
	component Component
	listeners []*listenerEntry
}

func (h *Hub) newRuntime(name string) *componentRuntime {
	rt := &componentRuntime{
		handle:  handle{id: h.nextID.Add(1), name: name},
		logger:  observability.EnrichLogger(h.logger, name),
		metrics: h.cfg.metrics,
		spans:   h.cfg.spans,
		stores:  h.cfg.newStores(),
	}
	rt.mailbox = mailbox.New(name, rt.process, mailbox.WithLogger(rt.logger))
	return rt
}

func (rt *componentRuntime) lifecycle() lifecycle {
	return lifecycle(rt.status.Load())
}

func (rt *componentRuntime) setLifecycle(l lifecycle) {
	rt.status.Store(int32(l))
}

func (rt *componentRuntime) registered() bool {
	return rt.lifecycle() == lifecycleRegistered
}

func (rt *componentRuntime) addListener(l *listenerEntry) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.listeners = append(rt.listeners, l)
}

func (rt *componentRuntime) snapshot() (Component, []*listenerEntry) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.component, rt.listeners
}

// process is the mailbox handler: consult the gate, then run every matching
// listener in registration order.
func (rt *componentRuntime) process(e *event.Event) bool {
	component, listeners := rt.snapshot()

	if gate, ok := component.(Gate); ok && !gate.ReadyForEvent(e) {
		return false
	}

	for _, l := range listeners {
		if l.matches(e) {
			rt.invoke(l, e)
		}
	}
	return true
}

func (rt *componentRuntime) invoke(l *listenerEntry, e *event.Event) {
	ctx, span := rt.spans.StartListenerSpan(context.Background(), rt.handle.name, e.ID())
	done := observability.TimedOperation()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &ListenerPanicError{Component: rt.handle.name, EventID: e.ID(), Value: r}
				observability.LogListenerPanic(rt.logger, rt.handle.name, e.ID(), r, string(debug.Stack()))
			}
		}()
		l.notify(e, nil)
	}()

	rt.metrics.RecordListener(ctx, rt.handle.name, done(), err)
	rt.spans.EndSpanWithError(span, err)
}

// shutdown stops the worker and, once it has exited, runs the component's
// unregister hook.
// startDelivery starts the mailbox if the hub is started, the component is
// registered and StopEvents has not paused it. Every path that may start a
// mailbox goes through here.
func (rt *componentRuntime) startDelivery(h *Hub) {
	rt.deliveryMu.Lock()
	defer rt.deliveryMu.Unlock()

	if !rt.paused && rt.registered() && h.Started() {
		rt.mailbox.Start()
	}
}

func (rt *componentRuntime) stopEvents() {
	rt.deliveryMu.Lock()
	defer rt.deliveryMu.Unlock()

	rt.paused = true
	rt.mailbox.Stop()
}

func (rt *componentRuntime) startEvents(h *Hub) {
	rt.deliveryMu.Lock()
	rt.paused = false
	rt.deliveryMu.Unlock()

	rt.startDelivery(h)
}

func (rt *componentRuntime) isPaused() bool {
	rt.deliveryMu.Lock()
	defer rt.deliveryMu.Unlock()
	return rt.paused
}

func (rt *componentRuntime) shutdown() {
	rt.setLifecycle(lifecycleUnregistered)
	rt.mailbox.Shutdown()

	component, _ := rt.snapshot()
	u, ok := component.(Unregistrar)
	if !ok {
		return
	}
	go func() {
		<-rt.mailbox.Done()
		defer func() {
			if r := recover(); r != nil {
				rt.logger.Error("unregister hook panicked",
					slog.String("panic", fmt.Sprint(r)),
				)
			}
		}()
		u.OnUnregistered()
	}()
}

func (rt *componentRuntime) describe() map[string]any {
	component, _ := rt.snapshot()

	info := map[string]any{
		"friendlyName": rt.handle.name,
		"version":      component.Version(),
	}
	if d, ok := component.(Describer); ok {
		if name := d.FriendlyName(); name != "" {
			info["friendlyName"] = name
		}
		if md := d.Metadata(); len(md) > 0 {
			copied := make(map[string]string, len(md))
			for k, v := range md {
				copied[k] = v
			}
			info["metadata"] = copied
		}
	}
	return info
}
