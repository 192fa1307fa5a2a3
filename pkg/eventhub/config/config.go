package config

import (
	"strings"
	"time"
)

// Config wraps a map[string]any for type-safe value extraction.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the string value for key, or defaultVal.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the boolean value for key, or defaultVal.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer value for key, or defaultVal. Floats are accepted
// only when they have no fractional part.
func (c Config) Int(key string, defaultVal int) int {
	switch val := c.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Duration returns the duration for key, or defaultVal.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as milliseconds
//   - time.Duration: used directly
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Millisecond
	case int64:
		return time.Duration(val) * time.Millisecond
	case float64:
		return time.Duration(val * float64(time.Millisecond))
	case time.Duration:
		return val
	}
	return defaultVal
}

// Map returns the nested map for key, or nil.
func (c Config) Map(key string) map[string]any {
	m, _ := c.data[key].(map[string]any)
	return m
}

// Has returns true if the key exists.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the underlying map. It must not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}

// Merge combines layers into a new Config. Keys in later layers replace keys
// in earlier ones; nested maps are replaced, not merged.
func Merge(layers ...Config) Config {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer.data {
			out[k] = v
		}
	}
	return New(out)
}

// EnvironmentKey is the config key naming the active build environment.
const EnvironmentKey = "build.environment"

// ForEnvironment resolves environment overrides. When EnvironmentKey is set
// to env, every "__env__key" entry replaces "key". Override entries for
// other environments are dropped from the result.
func (c Config) ForEnvironment() Config {
	env := c.String(EnvironmentKey, "")
	out := make(map[string]any, len(c.data))

	for k, v := range c.data {
		if _, _, isOverride := splitEnvKey(k); !isOverride {
			out[k] = v
		}
	}
	if env == "" {
		return New(out)
	}
	for k, v := range c.data {
		keyEnv, base, isOverride := splitEnvKey(k)
		if isOverride && keyEnv == env {
			out[base] = v
		}
	}
	return New(out)
}

// splitEnvKey parses "__env__key".
func splitEnvKey(k string) (env, base string, ok bool) {
	if !strings.HasPrefix(k, "__") {
		return "", "", false
	}
	rest := k[2:]
	i := strings.Index(rest, "__")
	if i <= 0 || i+2 >= len(rest) {
		return "", "", false
	}
	return rest[:i], rest[i+2:], true
}
