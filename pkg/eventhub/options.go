package eventhub

import (
	"log/slog"

	"github.com/randalmurphal/eventhub/pkg/eventhub/config"
	"github.com/randalmurphal/eventhub/pkg/eventhub/datastore"
	"github.com/randalmurphal/eventhub/pkg/eventhub/history"
	"github.com/randalmurphal/eventhub/pkg/eventhub/observability"
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// hubConfig holds hub construction settings.
type hubConfig struct {
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	history   history.Recorder
	dataStore datastore.Store
	settings  config.Settings
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		settings: config.DefaultSettings,
	}
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithLogger sets the structured logger. Each component gets a child logger
// carrying its name.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *hubConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics
//
// Example:
//
//	hub := eventhub.New(eventhub.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *hubConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the tracer used for dispatch and listener spans.
// Default: observability.NoopSpanManager
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *hubConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithHistory enables event history. Every dispatched event with a mask is
// recorded in the background; failures are logged and otherwise ignored.
func WithHistory(r history.Recorder) Option {
	return func(c *hubConfig) {
		c.history = r
	}
}

// WithDataStore sets the key-value service handed to components.
// Default: an in-memory store
func WithDataStore(s datastore.Store) Option {
	return func(c *hubConfig) {
		c.dataStore = s
	}
}

// WithSettings applies decoded configuration: wrapper type, response
// timeout and state cache size.
func WithSettings(s config.Settings) Option {
	return func(c *hubConfig) {
		c.settings = s
	}
}

// WithStateCacheSize sets the lookaside cache size of every shared state
// store. Zero disables caching.
// Default: 8
func WithStateCacheSize(n int) Option {
	return func(c *hubConfig) {
		if n >= 0 {
			c.settings.StateCacheSize = n
		}
	}
}

func (c hubConfig) newStores() [2]*state.Store {
	return [2]*state.Store{
		state.KindStandard: state.NewStoreWithCache(c.settings.StateCacheSize),
		state.KindXDM:      state.NewStoreWithCache(c.settings.StateCacheSize),
	}
}
