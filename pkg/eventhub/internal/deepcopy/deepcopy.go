// Package deepcopy copies event payloads and shared state values.
//
// Supported values are nil, booleans, strings, integer and float kinds, and
// slices, arrays and string-keyed maps built from supported values at any
// depth. Named types over those kinds keep their type. Supported values are
// copied so the result shares no mutable memory with the input.
//
// Sanitize drops everything else. Clone keeps everything else by reference.
package deepcopy

import "reflect"

// SanitizeMap returns a deep copy of m without unsupported values. A nil map
// yields nil.
func SanitizeMap(m map[string]any) map[string]any {
	return copyMap(m, true)
}

// CloneMap returns a deep copy of m. Unsupported values are shared.
func CloneMap(m map[string]any) map[string]any {
	return copyMap(m, false)
}

// Sanitize copies v and reports whether it is supported.
func Sanitize(v any) (any, bool) {
	return copyValue(v, true)
}

// Clone copies v if it is supported and returns it unchanged otherwise.
func Clone(v any) any {
	out, _ := copyValue(v, false)
	return out
}

func copyMap(m map[string]any, drop bool) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if c, ok := copyValue(v, drop); ok {
			out[k] = c
		}
	}
	return out
}

// copyValue returns the copy and whether it belongs in the result. With drop
// unset every value belongs, unsupported ones uncopied.
func copyValue(v any, drop bool) (any, bool) {
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, true
	case map[string]any:
		if val == nil {
			return val, true
		}
		return copyMap(val, drop), true
	case []any:
		if val == nil {
			return val, true
		}
		out := make([]any, 0, len(val))
		for _, item := range val {
			if c, ok := copyValue(item, drop); ok {
				out = append(out, c)
			}
		}
		return out, true
	}

	if c, ok := copyReflect(reflect.ValueOf(v)); ok {
		return c.Interface(), true
	}
	return v, !drop
}

// copyReflect copies typed collections such as []int or map[string]float64.
// Any unsupported element rejects the whole collection.
func copyReflect(rv reflect.Value) (reflect.Value, bool) {
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv, true

	case reflect.Interface:
		if rv.IsNil() {
			return rv, true
		}
		return copyReflect(rv.Elem())

	case reflect.Slice:
		if rv.IsNil() {
			return rv, true
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			c, ok := copyReflect(rv.Index(i))
			if !ok {
				return reflect.Value{}, false
			}
			out.Index(i).Set(c)
		}
		return out, true

	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			c, ok := copyReflect(rv.Index(i))
			if !ok {
				return reflect.Value{}, false
			}
			out.Index(i).Set(c)
		}
		return out, true

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		if rv.IsNil() {
			return rv, true
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c, ok := copyReflect(iter.Value())
			if !ok {
				return reflect.Value{}, false
			}
			out.SetMapIndex(iter.Key(), c)
		}
		return out, true

	default:
		return reflect.Value{}, false
	}
}
