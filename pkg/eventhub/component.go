package eventhub

import (
	"github.com/randalmurphal/eventhub/pkg/eventhub/datastore"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
)

// Component is an independently registered unit of business logic.
// It receives events through listeners registered on its API during
// construction and publishes shared state through the same API.
type Component interface {
	// Version returns the component version reported in the hub state.
	Version() string
}

// Registrar is implemented by components that need a hook once construction
// succeeds and before the component is visible to dispatch.
type Registrar interface {
	OnRegistered()
}

// Unregistrar is implemented by components that release resources when they
// are unregistered or the hub shuts down. It runs after the component's
// worker has stopped.
type Unregistrar interface {
	OnUnregistered()
}

// Gate is implemented by components that may refuse an event until some
// precondition holds. A refused event stays at the head of the component's
// mailbox until API.Resume is called; later events wait behind it.
type Gate interface {
	ReadyForEvent(e *event.Event) bool
}

// Describer is implemented by components that publish a friendly name and
// metadata in the hub state.
type Describer interface {
	FriendlyName() string
	Metadata() map[string]string
}

// Factory constructs a component. It runs off the hub's serialization point
// and may block. Listeners registered on api during construction are active
// once registration completes.
type Factory func(api *API) (Component, error)

// Services are the collaborators the hub makes available to components.
type Services struct {
	// DataStore is the namespaced key-value service.
	DataStore datastore.Store
	// History is the event history recorder, or nil when disabled.
	History history.Recorder
}
