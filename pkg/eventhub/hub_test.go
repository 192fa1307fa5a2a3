package eventhub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

func TestHub_QueuesBeforeStart(t *testing.T) {
	h := newTestHub(t)

	var a, b collector
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", a.listen)
	})
	register(t, h, "B", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", b.listen)
	})

	var dispatched []int64
	for i := 0; i < 5; i++ {
		e := h.Dispatch(event.New("e", "t", "s", map[string]any{"i": i}))
		require.NotNil(t, e)
		dispatched = append(dispatched, e.Sequence())
	}

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, a.count(), "no delivery before start")
	assert.Zero(t, b.count(), "no delivery before start")

	h.Start()

	for _, c := range []*collector{&a, &b} {
		require.Eventually(t, func() bool { return c.count() == 5 }, waitTimeout, tick)
		var got []int64
		for i, e := range c.all() {
			assert.Equal(t, i, e.Data()["i"])
			got = append(got, e.Sequence())
		}
		assert.Equal(t, dispatched, got)
	}

	// Exactly once.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 5, a.count())
}

func TestHub_SequenceIsStrictlyIncreasing(t *testing.T) {
	h := newTestHub(t)

	e := event.New("e", "t", "s", nil)
	first := h.Dispatch(e)
	second := h.Dispatch(e)

	assert.Equal(t, int64(0), e.Sequence(), "the caller's event is not stamped")
	assert.Greater(t, second.Sequence(), first.Sequence())
	assert.Equal(t, second.Sequence(), h.LatestSequence())
	assert.Nil(t, h.Dispatch(nil))
}

func TestHub_DuplicateNameIgnoresCase(t *testing.T) {
	h := newTestHub(t)
	register(t, h, "com.Example.Identity", nil)

	called := false
	r := awaitResult(t, h.Register("COM.example.identity", func(*API) (Component, error) {
		called = true
		return &testComponent{}, nil
	}))

	assert.Equal(t, ResultDuplicateName, r)
	assert.False(t, called, "factory must not run for a duplicate")
	assert.Equal(t, []string{"com.Example.Identity"}, h.Components())
	assert.Equal(t, uint64(1), h.nextID.Load(), "no runtime is built for a duplicate")
}

func TestHub_DuplicateWhileInitializing(t *testing.T) {
	h := newTestHub(t)

	release := make(chan struct{})
	first := h.Register("slow", func(*API) (Component, error) {
		<-release
		return &testComponent{}, nil
	})

	assert.Equal(t, ResultDuplicateName, awaitResult(t, h.Register("SLOW", func(*API) (Component, error) {
		return &testComponent{}, nil
	})))

	close(release)
	assert.Equal(t, ResultNone, awaitResult(t, first))
}

func TestHub_InvalidName(t *testing.T) {
	h := newTestHub(t)

	factory := func(*API) (Component, error) { return &testComponent{}, nil }
	assert.Equal(t, ResultInvalidName, awaitResult(t, h.Register("", factory)))
	assert.Equal(t, ResultInvalidName, awaitResult(t, h.Register("   ", factory)))
	assert.Equal(t, ResultDuplicateName, awaitResult(t, h.Register("EventHub", factory)))
}

func TestHub_InitializationFailure(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	cause := errors.New("missing configuration")

	err := h.RegisterAndWait(ctx, "broken", func(*API) (Component, error) {
		return nil, cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitializationFailure)
	assert.ErrorIs(t, err, cause)

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "broken", regErr.Name)
	assert.Equal(t, ResultInitializationFailure, regErr.Result)

	err = h.RegisterAndWait(ctx, "panics", func(*API) (Component, error) {
		panic("boom")
	})
	assert.ErrorIs(t, err, ErrInitializationFailure)

	err = h.RegisterAndWait(ctx, "nil", func(*API) (Component, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrInitializationFailure)

	assert.Empty(t, h.Components())

	// The name is free again.
	_, c := register(t, h, "broken", nil)
	assert.True(t, c.registered.Load())
}

func TestHub_SlowConstructionDoesNotBlockRegistration(t *testing.T) {
	h := newTestHub(t)

	release := make(chan struct{})
	slow := h.Register("slow", func(*API) (Component, error) {
		<-release
		return &testComponent{}, nil
	})

	fast := h.Register("fast", func(*API) (Component, error) {
		return &testComponent{}, nil
	})
	assert.Equal(t, ResultNone, awaitResult(t, fast))
	assert.Equal(t, []string{"fast"}, h.Components())

	close(release)
	assert.Equal(t, ResultNone, awaitResult(t, slow))
	assert.Equal(t, []string{"fast", "slow"}, h.Components())
}

func TestHub_Unregister(t *testing.T) {
	h := newTestHub(t)

	assert.Equal(t, ResultNotRegistered, awaitResult(t, h.Unregister("missing")))

	var got collector
	api, c := register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", got.listen)
	})
	h.Start()

	e1 := h.Dispatch(event.New("e1", "t", "s", nil))
	resolver := api.CreatePendingSharedState(state.KindStandard, e1)
	require.NotNil(t, resolver)
	require.Eventually(t, func() bool { return got.count() == 1 }, waitTimeout, tick)

	assert.Equal(t, ResultNone, awaitResult(t, h.Unregister("a")))
	assert.Empty(t, h.Components())
	assert.Eventually(t, c.unregistered.Load, waitTimeout, tick)

	// Everything against the removed component acts as not found.
	_, ok := h.GetSharedState(state.KindStandard, "A", e1, false, ResolutionAny)
	assert.False(t, ok)
	assert.Equal(t, state.StatusNone, resolver.Resolve(map[string]any{"k": "v"}))
	assert.False(t, api.RegisterListener("t", "s", got.listen))
	assert.Equal(t, ResultNotRegistered, awaitResult(t, h.Unregister("A")))

	h.Dispatch(event.New("e2", "t", "s", nil))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, got.count())
}

func TestHub_SelfUnregister(t *testing.T) {
	h := newTestHub(t)

	api, _ := register(t, h, "A", func(a *API, _ *testComponent) {
		a.RegisterListener("t", "quit", func(*event.Event) {
			a.Unregister()
		})
	})
	h.Start()
	h.Dispatch(event.New("quit", "t", "quit", nil))

	assert.Eventually(t, func() bool { return len(h.Components()) == 0 }, waitTimeout, tick)

	// A stale handle cannot remove a new registration of the same name.
	register(t, h, "A", nil)
	assert.Equal(t, ResultNotRegistered, awaitResult(t, api.Unregister()))
	assert.Equal(t, []string{"A"}, h.Components())
}

func TestHub_LongListenerDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(t)

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	var started atomic.Bool
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", func(*event.Event) {
			started.Store(true)
			<-block
		})
	})

	received := make(chan time.Time, 1)
	register(t, h, "B", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", func(*event.Event) {
			received <- time.Now()
		})
	})
	h.Start()

	sent := time.Now()
	h.Dispatch(event.New("e", "t", "s", nil))

	select {
	case at := <-received:
		assert.Less(t, at.Sub(sent), 100*time.Millisecond)
	case <-time.After(waitTimeout):
		t.Fatal("B was blocked by A")
	}
	assert.Eventually(t, started.Load, waitTimeout, tick)
}

func TestHub_ListenerPanicIsolated(t *testing.T) {
	h := newTestHub(t)

	var got collector
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", func(e *event.Event) {
			if e.Name() == "bad" {
				panic("listener failure")
			}
		})
		api.RegisterListener("t", "s", got.listen)
	})
	h.Start()

	h.Dispatch(event.New("bad", "t", "s", nil))
	h.Dispatch(event.New("good", "t", "s", nil))

	require.Eventually(t, func() bool { return got.count() == 2 }, waitTimeout, tick)
	assert.Equal(t, "bad", got.all()[0].Name(), "sibling listener still ran")
	assert.Equal(t, "good", got.all()[1].Name(), "worker kept going")
}

func TestHub_ListenerMatching(t *testing.T) {
	h := newTestHub(t)

	var typed, wildcard collector
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", typed.listen)
		api.RegisterWildcardListener(wildcard.listen)
	})
	h.Start()

	trigger := event.New("trigger", "t", "s", nil)
	h.Dispatch(trigger)
	h.Dispatch(event.New("response", "t", "s", nil, event.WithResponseTo(trigger)))
	h.Dispatch(event.New("other case", "T", "s", nil))
	h.Dispatch(event.New("last", "t", "s", nil))

	require.Eventually(t, func() bool { return len(wildcard.named("last")) == 1 }, waitTimeout, tick)

	var names []string
	for _, e := range typed.all() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"trigger", "last"}, names)

	assert.Len(t, wildcard.named("response"), 1, "wildcards see responses")
	assert.Len(t, wildcard.named(event.NameHubBooted), 1)
	assert.NotEmpty(t, wildcard.named(event.NameStateChange))
}

func TestHub_StopAndStartEvents(t *testing.T) {
	h := newTestHub(t)

	var got collector
	api, _ := register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", got.listen)
	})

	api.StopEvents()
	h.Start()
	h.Dispatch(event.New("e", "t", "s", nil))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, got.count(), "paused component stays paused across Start")

	api.StartEvents()
	assert.Eventually(t, func() bool { return got.count() == 1 }, waitTimeout, tick)
}

func TestHub_StopEventsRacingStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newTestHub(t)
		api, _ := register(t, h, "A", nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Start()
		}()
		go func() {
			defer wg.Done()
			api.StopEvents()
		}()
		wg.Wait()

		rt := runtimeOf(t, h, "A")
		require.True(t, rt.isPaused())
		require.False(t, rt.mailbox.Running(), "run %d: paused component has a running mailbox", i)
	}
}

func TestHub_StartEventsRacingStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newTestHub(t)
		api, _ := register(t, h, "A", nil)
		api.StopEvents()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Start()
		}()
		go func() {
			defer wg.Done()
			api.StartEvents()
		}()
		wg.Wait()

		require.True(t, runtimeOf(t, h, "A").mailbox.Running(), "run %d", i)
	}
}

func TestHub_GateHoldsOnlyThatComponent(t *testing.T) {
	h := newTestHub(t)

	var open atomic.Bool
	var a, b collector
	apiA, _ := register(t, h, "A", func(api *API, c *testComponent) {
		c.gate = func(e *event.Event) bool { return e.Name() != "wait" || open.Load() }
		api.RegisterListener("t", "s", a.listen)
	})
	register(t, h, "B", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", b.listen)
	})
	h.Start()

	h.Dispatch(event.New("wait", "t", "s", nil))
	h.Dispatch(event.New("after", "t", "s", nil))

	require.Eventually(t, func() bool { return b.count() == 2 }, waitTimeout, tick)
	require.Eventually(t, runtimeOf(t, h, "A").mailbox.Held, waitTimeout, tick)
	assert.Zero(t, a.count())

	open.Store(true)
	apiA.Resume()
	require.Eventually(t, func() bool { return a.count() == 2 }, waitTimeout, tick)
	assert.Equal(t, "wait", a.all()[0].Name())
}

func TestHub_Preprocessors(t *testing.T) {
	h := newTestHub(t)

	var got collector
	register(t, h, "A", func(api *API, _ *testComponent) {
		api.RegisterListener("t", "s", got.listen)
	})

	var order []string
	first := NewPreprocessor(func(e *event.Event) *event.Event {
		order = append(order, "first")
		if e.Type() != "t" {
			return nil
		}
		return e.Copy(map[string]any{"stage": "first"})
	})
	tag := NewPreprocessor(func(e *event.Event) *event.Event {
		order = append(order, "second")
		if e.Type() != "t" {
			return e
		}
		data := e.Data()
		data["tagged"] = true
		return event.New(e.Name(), e.Type(), e.Source(), data, event.WithEventID(e.ID()))
	})

	assert.True(t, h.RegisterPreprocessor(first))
	assert.False(t, h.RegisterPreprocessor(first), "same instance twice is a no-op")
	assert.True(t, h.RegisterPreprocessor(tag))
	assert.False(t, h.RegisterPreprocessor(nil))

	h.Start()
	order = nil

	in := event.New("e", "t", "s", map[string]any{"stage": "original"})
	out := h.Dispatch(in)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, map[string]any{"stage": "first", "tagged": true}, out.Data())
	assert.Equal(t, in.ID(), out.ID())
	assert.Equal(t, h.LatestSequence(), out.Sequence(), "substitutes keep the dispatch sequence")

	require.Eventually(t, func() bool { return got.count() == 1 }, waitTimeout, tick)
	assert.Same(t, out, got.all()[0])
}

func TestHub_History(t *testing.T) {
	rec := history.NewMemoryRecorder()
	h := newTestHub(t, WithHistory(rec))

	h.Dispatch(event.New("plain", "t", "s", map[string]any{"k": "v"}))
	h.Dispatch(event.New("masked", "t", "s", map[string]any{"k": "v"}, event.WithMask("k")))

	assert.Eventually(t, func() bool { return rec.Len() == 1 }, waitTimeout, tick)
	assert.Same(t, rec, h.Services().History)
	assert.NotNil(t, h.Services().DataStore)
}

func TestHub_Shutdown(t *testing.T) {
	h := New(WithLogger(discardLogger()))

	api, c := register(t, h, "A", nil)
	h.Start()
	h.Shutdown()
	h.Shutdown()

	assert.Nil(t, h.Dispatch(event.New("e", "t", "s", nil)))
	assert.Equal(t, ResultUnknown, awaitResult(t, h.Register("B", func(*API) (Component, error) {
		return &testComponent{}, nil
	})))
	assert.Equal(t, ResultUnknown, awaitResult(t, h.Unregister("A")))
	assert.Empty(t, h.Components())
	assert.Eventually(t, c.unregistered.Load, waitTimeout, tick)
	assert.Nil(t, api.Dispatch(event.New("e", "t", "s", nil)))

	h.Start() // no-op
}

func TestHub_Services(t *testing.T) {
	h := newTestHub(t)

	var services Services
	register(t, h, "A", func(api *API, _ *testComponent) {
		services = api.Services()
	})

	ns := services.DataStore.Namespace("A")
	require.NoError(t, ns.Set(context.Background(), "k", "v"))
	v, err := h.Services().DataStore.Namespace("A").Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.Nil(t, services.History)
}
