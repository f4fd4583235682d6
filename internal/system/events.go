// Package system carries process-level events, such as a restart request,
// from the components that detect them to the process owner.
package system

import (
	"sync"

	"github.com/pkg/errors"
)

type Event int

const (
	EventRestart Event = iota + 1
)

func (e Event) String() string {
	switch e {
	case EventRestart:
		return "restart"
	default:
		return "unknown"
	}
}

var (
	ErrEventPending = errors.New("event already pending")
	ErrClosed       = errors.New("event channel closed")
)

// Events is a single-slot event queue. A second event sent before the first
// was consumed is refused rather than queued.
type Events struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewEvents() *Events {
	return &Events{ch: make(chan Event, 1)}
}

func (e *Events) Send(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	select {
	case e.ch <- ev:
		return nil
	default:
		return errors.Wrapf(ErrEventPending, "cannot send %s", ev)
	}
}

// Restart requests a process restart.
func (e *Events) Restart() error {
	return e.Send(EventRestart)
}

func (e *Events) C() <-chan Event {
	return e.ch
}

func (e *Events) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
