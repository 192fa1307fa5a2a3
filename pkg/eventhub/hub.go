package eventhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventhub/pkg/eventhub/datastore"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/registry"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// Version is the SDK version reported in the hub state.
const Version = "1.0.0"

// HubName is the name the hub publishes its own shared state under. No
// component may register with this name.
const HubName = "eventhub"

// Hub routes events to registered components and brokers their shared state.
//
// Registration and unregistration are serialized on a single hub goroutine.
// Event delivery never runs there: each component drains its own mailbox on
// its own worker.
type Hub struct {
	cfg      hubConfig
	logger   *slog.Logger
	services Services

	components *registry.Registry[*componentRuntime]
	nextID     atomic.Uint64

	tasks        chan func()
	quit         chan struct{}
	loopDone     chan struct{}
	shutdownOnce sync.Once

	mu            sync.RWMutex
	preprocessors []Preprocessor
	wrapper       WrapperType
	started       bool

	// dispatchMu orders sequence assignment with mailbox fan-out and guards
	// closed.
	dispatchMu sync.Mutex
	seq        atomic.Int64
	closed     bool

	responses *responseMatcher
	hubStores [2]*state.Store
	recording sync.WaitGroup
}

// New creates a hub. Components can be registered and events dispatched
// immediately; delivery begins at Start.
func New(opts ...Option) *Hub {
	cfg := defaultHubConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.dataStore == nil {
		cfg.dataStore = datastore.NewMemoryStore()
	}

	logger := cfg.logger.With(slog.String("hub", HubName))
	h := &Hub{
		cfg:    cfg,
		logger: logger,
		services: Services{
			DataStore: cfg.dataStore,
			History:   cfg.history,
		},
		components: registry.New[*componentRuntime](),
		tasks:      make(chan func()),
		quit:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		wrapper:    WrapperType(cfg.settings.WrapperType),
		responses:  newResponseMatcher(logger, cfg.metrics),
		hubStores:  cfg.newStores(),
	}
	if h.wrapper == "" {
		h.wrapper = WrapperNone
	}

	go h.loop()
	return h
}

// loop is the serialization point.
func (h *Hub) loop() {
	defer close(h.loopDone)
	for {
		select {
		case fn := <-h.tasks:
			fn()
		case <-h.quit:
			return
		}
	}
}

// submit hands fn to the serialization point. It reports false once the hub
// is shut down, in which case fn never runs.
func (h *Hub) submit(fn func()) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case h.tasks <- fn:
		return true
	case <-h.quit:
		return false
	}
}

// Start begins event delivery. Events dispatched earlier are delivered in
// their original order. Start republishes the hub state and dispatches the
// booted event; calling it again is a no-op.
func (h *Hub) Start() {
	done := make(chan struct{})
	if !h.submit(func() {
		defer close(done)
		h.start()
	}) {
		return
	}
	<-done
}

func (h *Hub) start() {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	h.publishHubState()
	h.components.Range(func(_ string, rt *componentRuntime) bool {
		rt.startDelivery(h)
		return true
	})
	h.Dispatch(event.New(event.NameHubBooted, event.TypeHub, event.SourceBooted, nil))

	observability.LogHubStarted(h.logger, len(h.Components()))
}

// Started reports whether Start has run.
func (h *Hub) Started() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Shutdown stops every component worker and pending response timer. Queued
// events are discarded and later calls fail. It waits for history writes
// already in flight but not for listeners that are running.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.quit)
		<-h.loopDone

		h.dispatchMu.Lock()
		h.closed = true
		runtimes := h.components.Values()
		for _, rt := range runtimes {
			h.components.Remove(rt.handle.name)
		}
		h.dispatchMu.Unlock()

		for _, rt := range runtimes {
			rt.shutdown()
		}
		h.responses.close()
		h.recording.Wait()

		h.logger.Info("event hub shut down", slog.Int("components", len(runtimes)))
	})
}

// Register adds a component built by factory under name. The factory runs
// asynchronously; the returned channel receives exactly one Result.
//
// Names are compared case-insensitively. A name that is registered or still
// initializing fails with ResultDuplicateName without calling factory.
func (h *Hub) Register(name string, factory Factory) <-chan Result {
	out := make(chan Result, 1)
	h.registerAsync(name, factory, func(r Result, _ error) { out <- r })
	return out
}

// RegisterAndWait is Register followed by waiting for the outcome. Failures
// are returned as *RegistrationError.
//
// Example:
//
//	err := hub.RegisterAndWait(ctx, "com.example.identity", newIdentity)
//	if errors.Is(err, eventhub.ErrDuplicateName) {
//	    // already registered
//	}
func (h *Hub) RegisterAndWait(ctx context.Context, name string, factory Factory) error {
	type outcome struct {
		result Result
		err    error
	}
	ch := make(chan outcome, 1)
	h.registerAsync(name, factory, func(r Result, err error) { ch <- outcome{r, err} })

	select {
	case o := <-ch:
		if o.result == ResultNone {
			return nil
		}
		return &RegistrationError{Name: name, Result: o.result, Err: o.err}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) registerAsync(name string, factory Factory, done func(Result, error)) {
	if !h.submit(func() { h.register(name, factory, done) }) {
		done(ResultUnknown, ErrHubShutdown)
	}
}

// register runs on the serialization point.
func (h *Hub) register(name string, factory Factory, done func(Result, error)) {
	if strings.TrimSpace(name) == "" {
		h.registrationFailed(name, ResultInvalidName, nil, done)
		return
	}
	if registry.Key(name) == registry.Key(HubName) || h.components.Has(name) {
		h.registrationFailed(name, ResultDuplicateName, nil, done)
		return
	}

	rt := h.newRuntime(name)
	if !h.components.Add(name, rt) {
		rt.mailbox.Shutdown()
		h.registrationFailed(name, ResultDuplicateName, nil, done)
		return
	}

	api := newAPI(h, rt)
	go func() {
		component, err := construct(factory, api)
		if !h.submit(func() { h.completeRegistration(rt, component, err, done) }) {
			rt.shutdown()
			done(ResultUnknown, ErrHubShutdown)
		}
	}()
}

// construct runs factory and the OnRegistered hook, converting panics to
// errors.
func construct(factory Factory, api *API) (component Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			component, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
	}()

	if factory == nil {
		return nil, errors.New("nil factory")
	}
	component, err = factory(api)
	if err != nil {
		return nil, err
	}
	if component == nil {
		return nil, errors.New("factory returned nil component")
	}
	if r, ok := component.(Registrar); ok {
		r.OnRegistered()
	}
	return component, nil
}

// completeRegistration runs on the serialization point.
func (h *Hub) completeRegistration(rt *componentRuntime, component Component, err error, done func(Result, error)) {
	name := rt.handle.name
	if err != nil {
		h.components.Remove(name)
		rt.shutdown()
		h.registrationFailed(name, ResultInitializationFailure, err, done)
		return
	}

	rt.mu.Lock()
	rt.component = component
	rt.mu.Unlock()

	h.dispatchMu.Lock()
	if h.closed {
		h.dispatchMu.Unlock()
		rt.shutdown()
		done(ResultUnknown, ErrHubShutdown)
		return
	}
	rt.setLifecycle(lifecycleRegistered)
	h.dispatchMu.Unlock()

	rt.startDelivery(h)

	observability.LogComponentRegistered(h.logger, name, component.Version())
	h.publishHubState()
	done(ResultNone, nil)
}

func (h *Hub) registrationFailed(name string, result Result, err error, done func(Result, error)) {
	observability.LogRegistrationFailed(h.logger, name, result.String(), err)
	done(result, err)
}

// Unregister removes the named component. Its worker stops, its listeners
// and shared state are dropped, and its OnUnregistered hook runs once the
// worker has exited.
func (h *Hub) Unregister(name string) <-chan Result {
	return h.unregisterAsync(name, 0)
}

func (h *Hub) unregisterAsync(name string, id uint64) <-chan Result {
	out := make(chan Result, 1)
	if !h.submit(func() { out <- h.unregister(name, id) }) {
		out <- ResultUnknown
	}
	return out
}

// unregister runs on the serialization point. A non-zero id must match the
// registration.
func (h *Hub) unregister(name string, id uint64) Result {
	rt, ok := h.components.Get(name)
	if !ok || !rt.registered() || (id != 0 && rt.handle.id != id) {
		observability.LogRegistrationFailed(h.logger, name, ResultNotRegistered.String(), nil)
		return ResultNotRegistered
	}

	h.dispatchMu.Lock()
	h.components.Remove(name)
	rt.setLifecycle(lifecycleUnregistered)
	h.dispatchMu.Unlock()

	rt.shutdown()
	observability.LogComponentUnregistered(h.logger, rt.handle.name)
	h.publishHubState()
	return ResultNone
}

// Components returns the names of registered components, sorted.
func (h *Hub) Components() []string {
	var names []string
	h.components.Range(func(name string, rt *componentRuntime) bool {
		if rt.registered() {
			names = append(names, name)
		}
		return true
	})
	return names
}

// Services returns the collaborators shared with components.
func (h *Hub) Services() Services {
	return h.services
}

// Dispatch assigns e the next sequence number, runs the preprocessor chain
// and queues the result for every registered component and the response
// matcher. It returns the event as delivered, or nil if e is nil or the hub
// is shut down. Dispatch never waits for listeners.
func (h *Hub) Dispatch(e *event.Event) *event.Event {
	if e == nil {
		return nil
	}

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.closed {
		return nil
	}
	return h.dispatchLocked(e, h.seq.Add(1))
}

// dispatchLocked must be called with dispatchMu held.
func (h *Hub) dispatchLocked(e *event.Event, seq int64) *event.Event {
	ctx, span := h.cfg.spans.StartDispatchSpan(context.Background(), e.ID(), e.Type(), e.Source(), seq)
	defer h.cfg.spans.EndSpanWithError(span, nil)

	final := h.preprocess(event.Sequenced(e, seq), seq)

	h.components.Range(func(_ string, rt *componentRuntime) bool {
		if rt.registered() {
			rt.mailbox.Offer(final)
		}
		return true
	})
	h.responses.match(final)

	if final.Mask() != nil && h.cfg.history != nil {
		h.recording.Add(1)
		go h.record(final)
	}

	h.cfg.metrics.RecordDispatch(ctx, final.Type(), final.Source())
	return final
}

func (h *Hub) record(e *event.Event) {
	defer h.recording.Done()
	if err := h.cfg.history.Record(context.Background(), e); err != nil {
		observability.LogHistoryError(h.logger, e.ID(), err)
	}
}

// LatestSequence returns the sequence number of the most recent dispatch.
func (h *Hub) LatestSequence() int64 {
	return h.seq.Load()
}
