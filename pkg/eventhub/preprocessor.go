package eventhub

import (
	"reflect"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Preprocessor rewrites events before they reach any component. Returning nil
// keeps the incoming event. Preprocessors run in registration order while
// the dispatch order is held, so they must not dispatch themselves.
type Preprocessor interface {
	Preprocess(e *event.Event) *event.Event
}

type preprocessorFunc struct {
	fn func(*event.Event) *event.Event
}

func (p *preprocessorFunc) Preprocess(e *event.Event) *event.Event {
	return p.fn(e)
}

// NewPreprocessor adapts a function to a Preprocessor. Each call returns a
// distinct instance; register the returned value, not the function, when
// deduplication matters.
func NewPreprocessor(fn func(e *event.Event) *event.Event) Preprocessor {
	return &preprocessorFunc{fn: fn}
}

// RegisterPreprocessor appends p to the preprocessor chain. Registering the
// same instance twice is a no-op and reports false.
func (h *Hub) RegisterPreprocessor(p Preprocessor) bool {
	if p == nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.preprocessors {
		if samePreprocessor(existing, p) {
			return false
		}
	}
	h.preprocessors = append(h.preprocessors, p)
	return true
}

func samePreprocessor(a, b Preprocessor) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// preprocess runs the chain. The result always carries sequence seq.
func (h *Hub) preprocess(e *event.Event, seq int64) *event.Event {
	h.mu.RLock()
	chain := h.preprocessors
	h.mu.RUnlock()

	for _, p := range chain {
		if out := p.Preprocess(e); out != nil && out != e {
			e = event.Sequenced(out, seq)
		}
	}
	return e
}
