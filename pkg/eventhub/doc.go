// Package eventhub provides an in-process event hub for pluggable components.
//
// # Overview
//
// A Hub delivers events to independently registered components. Each
// component drains its own FIFO mailbox on its own worker, so a slow
// listener never delays another component. Components publish versioned
// shared state keyed to event sequence numbers, and read each other's state
// as of any dispatched event.
//
// # Basic Usage
//
//	hub := eventhub.New(eventhub.WithLogger(logger))
//	defer hub.Shutdown()
//
//	err := hub.RegisterAndWait(ctx, "com.example.identity", func(api *eventhub.API) (eventhub.Component, error) {
//	    c := &identity{api: api}
//	    api.RegisterListener("identity", "request.content", c.handleRequest)
//	    return c, nil
//	})
//
//	hub.Start()
//	hub.Dispatch(event.New("Get ids", "identity", "request.content", nil))
//
// # Sequencing
//
// Dispatch stamps every event with the next hub-wide sequence number before
// the preprocessor chain runs. Events dispatched before Start queue in every
// mailbox and are delivered in order once Start runs.
//
// # Shared State
//
// A component writes its state at the sequence of the event that produced
// it (CreateSharedState), or reserves the slot and fills it in later
// (CreatePendingSharedState and PendingResolver.Resolve). Versions only move
// forward and a pending entry resolves once.
//
// Readers call GetSharedState with the event they are processing. The result
// is the entry at the greatest version not after that event. With barrier
// set, a set entry is reported pending until the owner itself has processed
// the event, which lets a reader wait for a slow owner to catch up.
//
// The hub publishes its own state under HubName: the SDK version, the
// wrapper type and every registered component's name, version and metadata.
//
// # Responses
//
// RegisterResponseListener waits for an event created with
// event.WithResponseTo(trigger). The callback runs exactly once, with the
// response or with ErrCallbackTimeout. Request wraps this for synchronous
// callers.
//
// # Errors
//
// Registration outcomes are Result values; Result.Err maps them to sentinel
// errors for errors.Is. State writes report state.Status rather than errors.
// Listener panics are recovered, logged with the event id and counted.
//
// # Thread Safety
//
// All Hub and API methods are safe for concurrent use. Preprocessors run
// while dispatch order is held and must not dispatch or write shared state.
package eventhub
