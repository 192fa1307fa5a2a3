// Package registry provides a thread-safe, case-insensitive registry of
// values indexed by name.
//
// Names are compared case-insensitively everywhere: "Analytics" and
// "analytics" are the same entry. The original spelling of the first
// registration is kept and returned by Names.
//
// # Basic Usage
//
//	r := registry.New[*Runtime]()
//	if !r.Add("Analytics", rt) {
//	    // a component with that name already exists
//	}
//
//	rt, ok := r.Get("analytics")
//
// # Thread Safety
//
// All methods are safe for concurrent use. Range and Values work on a
// snapshot, so callers may Add or Remove while iterating.
package registry
