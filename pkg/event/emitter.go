// Package event provides the publish/subscribe notifier used by the flow
// client to report connection lifecycle changes.
//
// Dispatch is synchronous: Emit invokes every listener registered for the
// event name, in registration order, on the calling goroutine. Listeners are
// snapshotted before dispatch, so a listener may subscribe or unsubscribe
// (including itself) while it is running.
package event

import (
	"sync"
	"time"
)

// Name identifies an event kind.
type Name string

// Lifecycle event names emitted by the client.
const (
	// Connect fires once the TCP handshake succeeds.
	Connect Name = "connect"

	// Error fires with the transport failure that occurred.
	Error Name = "error"

	// Close fires once per handle, after the socket is fully closed.
	// Event.HadError reports whether the close was caused by an error.
	Close Name = "close"

	// Warning fires on benign caller mistakes, such as a redundant Connect.
	Warning Name = "warning"

	// Data fires with raw bytes received from the peer.
	Data Name = "data"
)

// Event is delivered to listeners.
type Event struct {
	// Name is the event kind.
	Name Name

	// Time is when the event was emitted.
	Time time.Time

	// ConnectionID identifies the transport handle that produced the event.
	ConnectionID string

	// Err is set for Error events.
	Err error

	// HadError is set for Close events caused by a transport error.
	HadError bool

	// Data is set for Data events.
	Data []byte

	// Message is set for Warning events.
	Message string
}

// Listener handles an event.
type Listener func(Event)

// Subscription identifies a registered listener. The zero value matches no
// listener.
type Subscription struct {
	name Name
	id   uint64
}

// Name returns the event name the subscription listens on.
func (s Subscription) Name() Name {
	return s.name
}

type entry struct {
	id       uint64
	listener Listener
	once     bool
}

// Emitter is a named-event notifier. The zero value is ready to use and an
// Emitter is safe for concurrent use.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Name][]entry
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// On registers l for events named name.
func (e *Emitter) On(name Name, l Listener) Subscription {
	return e.add(name, l, false)
}

// Once registers l for the next event named name only.
func (e *Emitter) Once(name Name, l Listener) Subscription {
	return e.add(name, l, true)
}

func (e *Emitter) add(name Name, l Listener, once bool) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[Name][]entry)
	}
	e.nextID++
	e.listeners[name] = append(e.listeners[name], entry{id: e.nextID, listener: l, once: once})
	return Subscription{name: name, id: e.nextID}
}

// Off removes the listener identified by sub. It reports whether a listener
// was removed.
func (e *Emitter) Off(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(sub.name, sub.id)
}

func (e *Emitter) removeLocked(name Name, id uint64) bool {
	entries := e.listeners[name]
	for i, en := range entries {
		if en.id != id {
			continue
		}
		updated := make([]entry, 0, len(entries)-1)
		updated = append(updated, entries[:i]...)
		updated = append(updated, entries[i+1:]...)
		if len(updated) == 0 {
			delete(e.listeners, name)
		} else {
			e.listeners[name] = updated
		}
		return true
	}
	return false
}

// RemoveAll removes every listener registered for name.
func (e *Emitter) RemoveAll(name Name) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, name)
}

// ListenerCount returns the number of listeners registered for name.
func (e *Emitter) ListenerCount(name Name) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// Emit delivers ev to the listeners registered for ev.Name and returns how
// many were invoked. A zero Time is filled in with the current time.
func (e *Emitter) Emit(ev Event) int {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.Lock()
	snapshot := e.listeners[ev.Name]
	for _, en := range snapshot {
		if en.once {
			e.removeLocked(ev.Name, en.id)
		}
	}
	e.mu.Unlock()

	for _, en := range snapshot {
		en.listener(ev)
	}
	return len(snapshot)
}
