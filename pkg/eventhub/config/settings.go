package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config keys read by Decode.
const (
	KeyWrapperType     = "eventhub.wrapper_type"
	KeyResponseTimeout = "eventhub.response_timeout"
	KeyStateCacheSize  = "eventhub.state_cache_size"
	KeyHistoryPath     = "eventhub.history_path"
	KeyDataStorePath   = "eventhub.datastore_path"
	KeyLogLevel        = "eventhub.log_level"
)

// Settings are the event hub's own tunables.
type Settings struct {
	// WrapperType tags the runtime wrapping the SDK ("N" for none).
	WrapperType string

	// ResponseTimeout is the default deadline for Request.
	ResponseTimeout time.Duration

	// StateCacheSize is the lookaside cache size of each shared state store.
	StateCacheSize int

	// HistoryPath is the SQLite file for event history; empty disables it.
	HistoryPath string

	// DataStorePath is the SQLite file for the key-value service; empty
	// selects the in-memory store.
	DataStorePath string

	// LogLevel is the minimum slog level.
	LogLevel slog.Level
}

// DefaultSettings provides reasonable defaults.
var DefaultSettings = Settings{
	WrapperType:     "N",
	ResponseTimeout: 5 * time.Second,
	StateCacheSize:  8,
	LogLevel:        slog.LevelInfo,
}

// Decode reads Settings from c after applying environment overrides.
func Decode(c Config) Settings {
	c = c.ForEnvironment()
	d := DefaultSettings
	return Settings{
		WrapperType:     c.String(KeyWrapperType, d.WrapperType),
		ResponseTimeout: c.Duration(KeyResponseTimeout, d.ResponseTimeout),
		StateCacheSize:  c.Int(KeyStateCacheSize, d.StateCacheSize),
		HistoryPath:     c.String(KeyHistoryPath, d.HistoryPath),
		DataStorePath:   c.String(KeyDataStorePath, d.DataStorePath),
		LogLevel:        ParseLevel(c.String(KeyLogLevel, ""), d.LogLevel),
	}
}

// ParseLevel parses a log level name (case-insensitive), returning
// defaultVal for unknown names.
func ParseLevel(level string, defaultVal slog.Level) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return defaultVal
	}
}
