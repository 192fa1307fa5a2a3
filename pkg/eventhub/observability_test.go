package eventhub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// spyMetrics counts recorder calls.
type spyMetrics struct {
	mu             sync.Mutex
	dispatched     map[string]int
	listenerCalls  map[string]int
	listenerErrors map[string]int
	stateWrites    []string
	timeouts       int
}

func newSpyMetrics() *spyMetrics {
	return &spyMetrics{
		dispatched:     make(map[string]int),
		listenerCalls:  make(map[string]int),
		listenerErrors: make(map[string]int),
	}
}

func (s *spyMetrics) RecordDispatch(_ context.Context, eventType, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched[eventType+"/"+source]++
}

func (s *spyMetrics) RecordListener(_ context.Context, component string, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listenerCalls[component]++
	if err != nil {
		s.listenerErrors[component]++
	}
}

func (s *spyMetrics) RecordSharedState(_ context.Context, component, kind, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateWrites = append(s.stateWrites, component+"/"+kind+"/"+status)
}

func (s *spyMetrics) RecordResponseTimeout(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeouts++
}

func (s *spyMetrics) read(fn func(s *spyMetrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

var _ observability.MetricsRecorder = (*spyMetrics)(nil)

func TestHub_RecordsMetrics(t *testing.T) {
	spy := newSpyMetrics()
	h := newTestHub(t, WithMetrics(spy))

	api, _ := register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", func(e *event.Event) {
			if e.Name() == "bad" {
				panic("boom")
			}
		})
	})
	h.Start()

	h.Dispatch(event.New("good", "t", "s", nil))
	h.Dispatch(event.New("bad", "t", "s", nil))
	api.CreateSharedState(state.KindStandard, map[string]any{"k": "v"}, nil)
	api.RegisterResponseListener(event.New("trigger", "t", "s", nil), 10*time.Millisecond, func(*event.Event, error) {})

	assert.Eventually(t, func() bool {
		var done bool
		spy.read(func(s *spyMetrics) {
			done = s.listenerCalls["A"] == 2 && s.timeouts == 1
		})
		return done
	}, waitTimeout, tick)

	spy.read(func(s *spyMetrics) {
		assert.Equal(t, 2, s.dispatched["t/s"])
		assert.Equal(t, 1, s.listenerErrors["A"])
		assert.Contains(t, s.stateWrites, "A/standard/set")
		assert.Positive(t, s.dispatched[event.TypeHub+"/"+event.SourceSharedState])
	})
}

func TestHub_TracesDispatchAndListeners(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	h := newTestHub(t, WithSpanManager(observability.NewSpanManager()))
	c := &collector{}
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", func(e *event.Event) {
			c.listen(e)
			if e.Name() == "bad" {
				panic("boom")
			}
		})
	})
	h.Start()

	good := event.New("good", "t", "s", nil)
	bad := event.New("bad", "t", "s", nil)
	h.Dispatch(good)
	h.Dispatch(bad)

	listenerSpans := func() map[string]tracetest.SpanStub {
		out := make(map[string]tracetest.SpanStub)
		for _, s := range exporter.GetSpans() {
			if s.Name != "eventhub.listener.A" {
				continue
			}
			for _, a := range s.Attributes {
				if a.Key == "event.id" {
					out[a.Value.AsString()] = s
				}
			}
		}
		return out
	}
	require.Eventually(t, func() bool { return len(listenerSpans()) == 2 }, waitTimeout, tick)

	spans := listenerSpans()
	assert.Equal(t, codes.Ok, spans[good.ID()].Status.Code)
	assert.Equal(t, codes.Error, spans[bad.ID()].Status.Code)

	var dispatches int
	for _, s := range exporter.GetSpans() {
		if s.Name == "eventhub.dispatch" {
			dispatches++
		}
	}
	assert.GreaterOrEqual(t, dispatches, 2)
}
