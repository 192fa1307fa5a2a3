// Package mailbox provides the ordered per-component event queue.
//
// A Mailbox owns one worker goroutine that hands queued events to a handler
// one at a time, in offer order, never overlapping. The handler may refuse
// the head event (a closed gate); the worker then holds that event without
// advancing until Resume is called.
//
// Mailboxes start paused. Events offered before Start queue up and are
// delivered in order once the mailbox is started.
package mailbox

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/eventhub/pkg/eventhub/event"
)

// Handler processes one event. Returning false holds the event at the head
// of the queue until the mailbox is resumed.
type Handler func(e *event.Event) bool

// Mailbox is an unbounded FIFO queue drained by a single worker.
type Mailbox struct {
	name    string
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []*event.Event
	running bool
	held    bool
	gen     uint64 // bumped by Start and Resume

	lastProcessed atomic.Int64

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithLogger sets the logger used for handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailbox) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a paused mailbox and starts its worker goroutine.
func New(name string, handler Handler, opts ...Option) *Mailbox {
	m := &Mailbox{
		name:    name,
		handler: handler,
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Name returns the mailbox owner name.
func (m *Mailbox) Name() string {
	return m.name
}

// Offer appends an event. It returns false after Shutdown.
func (m *Mailbox) Offer(e *event.Event) bool {
	m.mu.Lock()
	select {
	case <-m.quit:
		m.mu.Unlock()
		return false
	default:
	}
	m.queue = append(m.queue, e)
	m.mu.Unlock()

	m.signal()
	return true
}

// Start begins or resumes draining. Starting a running mailbox is a no-op
// apart from retrying a held event.
func (m *Mailbox) Start() {
	m.mu.Lock()
	m.running = true
	m.held = false
	m.gen++
	m.mu.Unlock()

	m.signal()
}

// Stop pauses draining once the in-flight event, if any, finishes.
// Offers still queue while stopped.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Resume retries the held head event, if any.
func (m *Mailbox) Resume() {
	m.mu.Lock()
	m.held = false
	m.gen++
	m.mu.Unlock()

	m.signal()
}

// Shutdown stops the worker. Queued events are discarded. It does not wait
// for an in-flight handler; use Done for that.
func (m *Mailbox) Shutdown() {
	m.quitOnce.Do(func() {
		m.mu.Lock()
		close(m.quit)
		m.queue = nil
		m.mu.Unlock()
	})
}

// Done is closed when the worker goroutine has exited.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Running reports whether the mailbox is draining.
func (m *Mailbox) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Held reports whether the worker is waiting on a refused event.
func (m *Mailbox) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// Len returns the number of queued events, including a held one.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// LastProcessed returns the sequence number of the last event the handler
// accepted, or 0 if none.
func (m *Mailbox) LastProcessed() int64 {
	return m.lastProcessed.Load()
}

func (m *Mailbox) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mailbox) run() {
	defer close(m.done)

	for {
		select {
		case <-m.quit:
			return
		default:
		}

		e, gen, ok := m.next()
		if !ok {
			select {
			case <-m.wake:
				continue
			case <-m.quit:
				return
			}
		}

		if !m.handle(e) {
			m.hold(gen)
			continue
		}
		m.advance(e)
	}
}

// next peeks at the head event if the worker may process it.
func (m *Mailbox) next() (*event.Event, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.held || len(m.queue) == 0 {
		return nil, 0, false
	}
	return m.queue[0], m.gen, true
}

func (m *Mailbox) hold(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A Resume that raced with the refusal wins.
	if m.gen == gen {
		m.held = true
	}
}

func (m *Mailbox) advance(e *event.Event) {
	m.mu.Lock()
	if len(m.queue) > 0 && m.queue[0] == e {
		m.queue[0] = nil
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if seq := e.Sequence(); seq > m.lastProcessed.Load() {
		m.lastProcessed.Store(seq)
	}
}

// handle runs the handler, treating a panic as a processed event so the
// queue keeps moving.
func (m *Mailbox) handle(e *event.Event) (accepted bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("mailbox handler panicked",
				slog.String("mailbox", m.name),
				slog.String("event_id", e.ID()),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			accepted = true
		}
	}()
	return m.handler(e)
}
