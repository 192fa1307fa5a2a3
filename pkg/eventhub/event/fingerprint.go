package event

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the masked payload of an event. Nested maps are
// flattened with dotted keys before masking, so a mask may name "a.b".
// An empty (non-nil) mask hashes every key. Returns 0 when the event has no
// mask or none of the masked keys are present.
func (e *Event) Fingerprint() uint64 {
	if e.mask == nil {
		return 0
	}
	return FingerprintData(e.data, e.mask)
}

// FingerprintData hashes data restricted to mask using the same canonical
// encoding as Event.Fingerprint.
func FingerprintData(data map[string]any, mask []string) uint64 {
	flat := make(map[string]any)
	flatten("", data, flat)

	keys := mask
	if len(keys) == 0 {
		keys = make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
	}
	keys = append([]string(nil), keys...)
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v, ok := flat[k]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s:%v;", k, v)
	}
	if b.Len() == 0 {
		return 0
	}
	return xxhash.Sum64String(b.String())
}

func flatten(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
