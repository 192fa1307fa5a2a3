// Package observability provides structured logging, metrics and tracing
// for the event hub.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns a logger tagged with the component name.
func EnrichLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// LogHubStarted logs hub start.
func LogHubStarted(logger *slog.Logger, components int) {
	if logger == nil {
		return
	}
	logger.Info("event hub started",
		slog.Int("components", components),
	)
}

// LogComponentRegistered logs a successful registration.
func LogComponentRegistered(logger *slog.Logger, name, version string) {
	if logger == nil {
		return
	}
	logger.Info("component registered",
		slog.String("component", name),
		slog.String("version", version),
	)
}

// LogComponentUnregistered logs a successful unregistration.
func LogComponentUnregistered(logger *slog.Logger, name string) {
	if logger == nil {
		return
	}
	logger.Info("component unregistered",
		slog.String("component", name),
	)
}

// LogRegistrationFailed logs a failed register or unregister call.
func LogRegistrationFailed(logger *slog.Logger, name, result string, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		slog.String("component", name),
		slog.String("result", result),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.Warn("component registration failed", attrs...)
}

// LogListenerPanic logs a recovered listener panic.
func LogListenerPanic(logger *slog.Logger, component, eventID string, value any, stack string) {
	if logger == nil {
		return
	}
	logger.Error("listener panicked",
		slog.String("component", component),
		slog.String("event_id", eventID),
		slog.Any("panic", value),
		slog.String("stack", stack),
	)
}

// LogResponseTimeout logs a response listener that expired.
func LogResponseTimeout(logger *slog.Logger, triggerID string, timeout time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("response listener timed out",
		slog.String("trigger_id", triggerID),
		slog.Duration("timeout", timeout),
	)
}

// LogSharedState logs a shared state write.
func LogSharedState(logger *slog.Logger, component, kind string, version int64, status string) {
	if logger == nil {
		return
	}
	logger.Debug("shared state updated",
		slog.String("component", component),
		slog.String("kind", kind),
		slog.Int64("version", version),
		slog.String("status", status),
	)
}

// LogSharedStateRejected logs a shared state write that was refused.
func LogSharedStateRejected(logger *slog.Logger, component, kind string, version int64, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("shared state update rejected",
		slog.String("component", component),
		slog.String("kind", kind),
		slog.Int64("version", version),
		slog.String("reason", reason),
	)
}

// LogHistoryError logs a failed history write (non-fatal).
func LogHistoryError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event history write failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
