package eventhub

import (
	"errors"
	"fmt"
)

// Sentinel errors for registration.
var (
	// ErrDuplicateName indicates a component with the same name (ignoring
	// case) is already registered or initializing.
	ErrDuplicateName = errors.New("duplicate component name")

	// ErrNotRegistered indicates no component with the given name is registered.
	ErrNotRegistered = errors.New("component not registered")

	// ErrInitializationFailure indicates the component factory failed.
	ErrInitializationFailure = errors.New("component initialization failed")

	// ErrInvalidName indicates an empty component name.
	ErrInvalidName = errors.New("invalid component name")

	// ErrUnknown indicates a failure with no more specific cause, such as a
	// request made after Shutdown.
	ErrUnknown = errors.New("unknown error")
)

// Sentinel errors for responses and listeners.
var (
	// ErrCallbackTimeout is delivered to a response listener whose deadline
	// passed before a matching response was dispatched.
	ErrCallbackTimeout = errors.New("callback timeout")

	// ErrHubShutdown indicates the hub has been shut down.
	ErrHubShutdown = errors.New("event hub shut down")

	// ErrListenerPanic indicates a listener callback panicked.
	ErrListenerPanic = errors.New("listener panicked")
)

// Result is the outcome of a registration request.
type Result int

const (
	// ResultNone means the request succeeded.
	ResultNone Result = iota
	// ResultDuplicateName means the name is already taken.
	ResultDuplicateName
	// ResultNotRegistered means the named component does not exist.
	ResultNotRegistered
	// ResultInitializationFailure means the factory failed.
	ResultInitializationFailure
	// ResultInvalidName means the name was empty.
	ResultInvalidName
	// ResultUnknown means the request could not be processed.
	ResultUnknown
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultNone:
		return "none"
	case ResultDuplicateName:
		return "duplicate_name"
	case ResultNotRegistered:
		return "not_registered"
	case ResultInitializationFailure:
		return "initialization_failure"
	case ResultInvalidName:
		return "invalid_name"
	default:
		return "unknown"
	}
}

// Err maps the result to its sentinel error, or nil for ResultNone.
func (r Result) Err() error {
	switch r {
	case ResultNone:
		return nil
	case ResultDuplicateName:
		return ErrDuplicateName
	case ResultNotRegistered:
		return ErrNotRegistered
	case ResultInitializationFailure:
		return ErrInitializationFailure
	case ResultInvalidName:
		return ErrInvalidName
	default:
		return ErrUnknown
	}
}

// RegistrationError describes a failed registration with its cause.
type RegistrationError struct {
	// Name is the component name as requested.
	Name string
	// Result is the registration outcome.
	Result Result
	// Err is the underlying cause, such as the factory's error.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("register %q: %s: %v", e.Name, e.Result, e.Err)
	}
	return fmt.Sprintf("register %q: %s", e.Name, e.Result)
}

// Unwrap returns the result sentinel and the cause for errors.Is/As support.
func (e *RegistrationError) Unwrap() []error {
	errs := []error{e.Result.Err()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ListenerPanicError wraps a recovered listener panic.
type ListenerPanicError struct {
	// Component is the component whose listener panicked.
	Component string
	// EventID is the event being delivered.
	EventID string
	// Value is the recovered panic value.
	Value any
}

// Error implements the error interface.
func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener of %s panicked on event %s: %v", e.Component, e.EventID, e.Value)
}

// Unwrap returns ErrListenerPanic.
func (e *ListenerPanicError) Unwrap() error {
	return ErrListenerPanic
}
