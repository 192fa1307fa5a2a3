package eventhub

import (
	"github.com/randalmurphal/eventhub/pkg/eventhub/state"
)

// WrapperType tags the cross-platform runtime, if any, that wraps the SDK.
type WrapperType string

// Known wrapper types.
const (
	WrapperNone        WrapperType = "N"
	WrapperReactNative WrapperType = "R"
	WrapperFlutter     WrapperType = "F"
	WrapperCordova     WrapperType = "C"
	WrapperUnity       WrapperType = "U"
	WrapperXamarin     WrapperType = "X"
)

// FriendlyName returns the display name of the wrapper type.
func (w WrapperType) FriendlyName() string {
	switch w {
	case WrapperReactNative:
		return "React Native"
	case WrapperFlutter:
		return "Flutter"
	case WrapperCordova:
		return "Cordova"
	case WrapperUnity:
		return "Unity"
	case WrapperXamarin:
		return "Xamarin"
	default:
		return "None"
	}
}

// SetWrapperType records the wrapper type published in the hub state. It
// only takes effect before Start and reports whether it did.
func (h *Hub) SetWrapperType(w WrapperType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return false
	}
	h.wrapper = w
	return true
}

// WrapperType returns the current wrapper type.
func (h *Hub) WrapperType() WrapperType {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wrapper
}

// hubStateData describes the hub and every registered component:
//
//	{"version": ..., "wrapper": {"type", "friendlyName"}, "extensions": {name: {...}}}
func (h *Hub) hubStateData() map[string]any {
	extensions := make(map[string]any)
	h.components.Range(func(name string, rt *componentRuntime) bool {
		if rt.registered() {
			extensions[name] = rt.describe()
		}
		return true
	})

	w := h.WrapperType()
	return map[string]any{
		"version": Version,
		"wrapper": map[string]any{
			"type":         string(w),
			"friendlyName": w.FriendlyName(),
		},
		"extensions": extensions,
	}
}

// publishHubState stores a new hub state version and announces it. The
// state is stored at the sequence of its own state change event, so any
// component reading it for that event sees the new roster.
func (h *Hub) publishHubState() {
	data := h.hubStateData()

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.closed {
		return
	}
	seq := h.seq.Add(1)
	h.hubStores[state.KindStandard].Set(seq, data)
	h.dispatchLocked(stateChangeEvent(state.KindStandard, HubName), seq)
	h.resumeHeld()
}
