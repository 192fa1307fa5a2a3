package state

import "github.com/randalmurphal/eventhub/pkg/eventhub/internal/deepcopy"

// Sanitize returns a deep copy of data holding only supported values: nil,
// booleans, strings, integer and float kinds, and slices, arrays and
// string-keyed maps of those, typed or not. Unsupported values are dropped
// from the copy instead of failing. A nil map yields nil.
func Sanitize(data map[string]any) map[string]any {
	return deepcopy.SanitizeMap(data)
}
