package eventhub

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

const waitTimeout = 2 * time.Second
const tick = 5 * time.Millisecond

// testComponent is a configurable component used across tests.
type testComponent struct {
	version  string
	friendly string
	metadata map[string]string

	// gate, if set, decides ReadyForEvent.
	gate func(e *event.Event) bool

	registered   atomic.Bool
	unregistered atomic.Bool
}

func (c *testComponent) Version() string { return c.version }

func (c *testComponent) OnRegistered() { c.registered.Store(true) }

func (c *testComponent) OnUnregistered() { c.unregistered.Store(true) }

func (c *testComponent) ReadyForEvent(e *event.Event) bool {
	if c.gate == nil {
		return true
	}
	return c.gate(e)
}

func (c *testComponent) FriendlyName() string { return c.friendly }

func (c *testComponent) Metadata() map[string]string { return c.metadata }

// collector records delivered events.
type collector struct {
	mu     sync.Mutex
	events []*event.Event
}

func (c *collector) listen(e *event.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) all() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*event.Event(nil), c.events...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// named returns the recorded events called name.
func (c *collector) named(name string) []*event.Event {
	var out []*event.Event
	for _, e := range c.all() {
		if e.Name() == name {
			out = append(out, e)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestHub creates a hub that is shut down when the test ends.
func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New(append([]Option{WithLogger(discardLogger())}, opts...)...)
	t.Cleanup(h.Shutdown)
	return h
}

// register adds a testComponent under name; setup runs inside the factory.
func register(t *testing.T, h *Hub, name string, setup func(api *API, c *testComponent)) (*API, *testComponent) {
	t.Helper()

	var api *API
	c := &testComponent{version: "1.0.0"}
	err := h.RegisterAndWait(context.Background(), name, func(a *API) (Component, error) {
		api = a
		if setup != nil {
			setup(a, c)
		}
		return c, nil
	})
	require.NoError(t, err)
	return api, c
}

// runtimeOf returns the live runtime for name.
func runtimeOf(t *testing.T, h *Hub, name string) *componentRuntime {
	t.Helper()
	rt, ok := h.lookup(name)
	require.True(t, ok, "component %s not registered", name)
	return rt
}

func awaitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("registration result not delivered")
		return ResultUnknown
	}
}
