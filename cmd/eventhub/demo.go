package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/eventhub/pkg/eventhub"
	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/datastore"
	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

var (
	demoEvents  int
	demoTimeout time.Duration
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run two cooperating components through a hub",
	Long: `Registers an identity component, whose shared state stays pending until
a visitor id is loaded from the data store, and an analytics component that
holds track events until that state is set. Then requests the visitor id,
dispatches track events and prints the hub's own shared state.

Set eventhub.history_path and eventhub.datastore_path in the configuration
file to persist history and the visitor id in SQLite.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().IntVarP(&demoEvents, "events", "n", 3, "number of track events to dispatch")
	demoCmd.Flags().DurationVar(&demoTimeout, "timeout", 5*time.Second, "time to wait for the demo to finish")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	opts, closeServices, err := demoOptions(cmd.ErrOrStderr(), settings)
	if err != nil {
		return err
	}
	defer closeServices()

	ctx, cancel := context.WithTimeout(cmd.Context(), demoTimeout)
	defer cancel()

	hub := eventhub.New(opts...)
	defer hub.Shutdown()

	return demo(ctx, cmd.OutOrStdout(), hub, demoEvents)
}

// demoOptions builds hub options from settings. The returned func closes
// whatever services were opened.
func demoOptions(logOut io.Writer, settings config.Settings) ([]eventhub.Option, func(), error) {
	opts := []eventhub.Option{
		eventhub.WithLogger(newLogger(logOut, settings.LogLevel)),
		eventhub.WithSettings(settings),
	}
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	if settings.HistoryPath != "" {
		rec, err := history.NewSQLiteRecorder(settings.HistoryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		closers = append(closers, rec.Close)
		opts = append(opts, eventhub.WithHistory(rec))
	}

	if settings.DataStorePath != "" {
		store, err := datastore.NewSQLiteStore(settings.DataStorePath)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open data store: %w", err)
		}
		closers = append(closers, store.Close)
		opts = append(opts, eventhub.WithDataStore(store))
	}

	return opts, closeAll, nil
}

func demo(ctx context.Context, out io.Writer, hub *eventhub.Hub, events int) error {
	hits := make(chan tracked, events)

	if err := hub.RegisterAndWait(ctx, identityName, newIdentity); err != nil {
		return err
	}
	if err := hub.RegisterAndWait(ctx, analyticsName, newAnalytics(hits)); err != nil {
		return err
	}
	hub.Start()

	request := event.New("Identity Request", typeIdentity, event.SourceRequestContent, nil)
	resp, err := hub.Request(ctx, request, 0)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	id, _ := resp.Value(keyVisitorID)
	fmt.Fprintf(out, "visitor id: %v\n", id)

	for i := 0; i < events; i++ {
		action := "view"
		if i%2 == 1 {
			action = "click"
		}
		hub.Dispatch(event.New("Track", typeAnalytics, sourceTrack,
			map[string]any{"action": action},
			event.WithMask("action"),
		))
	}

	for i := 0; i < events; i++ {
		select {
		case hit := <-hits:
			fmt.Fprintf(out, "tracked #%d %s for %s\n", hit.Sequence, hit.Action, hit.VisitorID)
		case <-ctx.Done():
			return fmt.Errorf("waiting for track events: %w", ctx.Err())
		}
	}

	entry, ok := hub.GetSharedState(state.KindStandard, eventhub.HubName, nil, false, eventhub.ResolutionAny)
	if !ok || entry.Status != state.StatusSet {
		return errors.New("hub state not available")
	}
	body, err := yaml.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("encode hub state: %w", err)
	}
	fmt.Fprintf(out, "hub state:\n%s", body)
	return nil
}
