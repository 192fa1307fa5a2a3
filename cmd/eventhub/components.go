package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
	"github.com/randalmurphal/eventhub/pkg/eventhub/datastore"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

const (
	identityName  = "com.example.identity"
	analyticsName = "com.example.analytics"

	typeIdentity  = "com.example.eventType.identity"
	typeAnalytics = "com.example.eventType.analytics"
	sourceTrack   = "com.example.eventSource.track"

	keyVisitorID = "visitor_id"
)

// identity owns a visitor id persisted in the data store. Its shared state
// is pending from boot until the id has been loaded.
type identity struct {
	api *eventhub.API
	ns  datastore.Namespace
	id  atomic.Value // string
}

func newIdentity(api *eventhub.API) (eventhub.Component, error) {
	store := api.Services().DataStore
	if store == nil {
		return nil, errors.New("identity needs a data store")
	}
	c := &identity{api: api, ns: store.Namespace(identityName)}
	api.RegisterListener(event.TypeHub, event.SourceBooted, c.onBooted)
	api.RegisterListener(typeIdentity, event.SourceRequestContent, c.onRequest)
	return c, nil
}

func (c *identity) Version() string      { return "1.0.0" }
func (c *identity) FriendlyName() string { return "Identity" }

// ReadyForEvent holds requests until the id is known.
func (c *identity) ReadyForEvent(e *event.Event) bool {
	if e.Type() != typeIdentity {
		return true
	}
	_, ok := c.id.Load().(string)
	return ok
}

func (c *identity) onBooted(e *event.Event) {
	pending := c.api.CreatePendingSharedState(state.KindStandard, e)
	if pending == nil {
		return
	}

	go func() {
		id, err := c.load(context.Background())
		if err != nil {
			c.api.Logger().Error("load visitor id", slog.String("error", err.Error()))
			return
		}
		c.id.Store(id)
		pending.Resolve(map[string]any{keyVisitorID: id})
	}()
}

func (c *identity) load(ctx context.Context) (string, error) {
	id, err := c.ns.Get(ctx, keyVisitorID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, datastore.ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := c.ns.Set(ctx, keyVisitorID, id); err != nil {
		return "", fmt.Errorf("persist visitor id: %w", err)
	}
	return id, nil
}

func (c *identity) onRequest(e *event.Event) {
	id, _ := c.id.Load().(string)
	c.api.Dispatch(event.New("Identity Response", typeIdentity, event.SourceResponseContent,
		map[string]any{keyVisitorID: id},
		event.WithResponseTo(e),
	))
}

// tracked is one analytics hit after identity enrichment.
type tracked struct {
	Sequence  int64
	Action    string
	VisitorID string
}

// analytics enriches track events with the visitor id. It will not process
// a track event before identity has a set state for it.
type analytics struct {
	api *eventhub.API
	out chan<- tracked
}

func newAnalytics(out chan<- tracked) eventhub.Factory {
	return func(api *eventhub.API) (eventhub.Component, error) {
		c := &analytics{api: api, out: out}
		api.RegisterListener(typeAnalytics, sourceTrack, c.onTrack)
		return c, nil
	}
}

func (c *analytics) Version() string { return "1.0.0" }

func (c *analytics) Metadata() map[string]string {
	return map[string]string{"sink": "stdout"}
}

func (c *analytics) ReadyForEvent(e *event.Event) bool {
	if e.Type() != typeAnalytics {
		return true
	}
	entry, ok := c.api.GetSharedState(state.KindStandard, identityName, e, false, eventhub.ResolutionLastSet)
	return ok && entry.Status == state.StatusSet
}

func (c *analytics) onTrack(e *event.Event) {
	entry, _ := c.api.GetSharedState(state.KindStandard, identityName, e, false, eventhub.ResolutionLastSet)
	id, _ := entry.Value[keyVisitorID].(string)
	action, _ := e.Value("action")

	c.out <- tracked{
		Sequence:  e.Sequence(),
		Action:    fmt.Sprint(action),
		VisitorID: id,
	}
}
