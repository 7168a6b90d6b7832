// Package events implements the in-process pub/sub channel that propagates
// feed change notifications from the storage layer to observers.
package events

import (
	"sync"

	"github.com/gfycat/feedcore/internal/feedid"
)

// FeedObserver receives change notifications for a feed it registered for.
// Observers are identified by interface equality on unregistration, so
// register pointer values.
type FeedObserver interface {
	OnFeedChange(id feedid.Identifier)
}

type registration struct {
	id       feedid.Identifier
	observer FeedObserver
}

// Bus delivers feed change notifications synchronously, in registration
// order, to every observer registered for the changed identifier. A root
// change is broadcast to all observers regardless of identifier.
//
// Delivery happens on the caller's goroutine. Observers may unregister
// themselves (or others) from within a callback; in-flight delivery iterates
// over a snapshot, so unrelated observers are neither skipped nor invoked
// after removal in subsequent notifications.
type Bus struct {
	mu        sync.Mutex
	observers map[string][]registration
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{observers: make(map[string][]registration)}
}

// RegisterFeedObserver subscribes observer to changes of id. A nil observer
// or identifier is ignored.
func (b *Bus) RegisterFeedObserver(id feedid.Identifier, observer FeedObserver) {
	if id == nil || observer == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := id.Serialize()
	b.observers[key] = append(b.observers[key], registration{id: id, observer: observer})
}

// UnregisterFeedObserver removes every registration of observer, across all
// identifiers.
func (b *Bus) UnregisterFeedObserver(observer FeedObserver) {
	if observer == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, regs := range b.observers {
		kept := regs[:0]
		for _, r := range regs {
			if r.observer != observer {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(b.observers, key)
		} else {
			b.observers[key] = kept
		}
	}
}

// NotifyChange delivers a change notification to the observers of id.
func (b *Bus) NotifyChange(id feedid.Identifier) {
	if id == nil {
		return
	}
	b.mu.Lock()
	regs := append([]registration(nil), b.observers[id.Serialize()]...)
	b.mu.Unlock()

	for _, r := range regs {
		r.observer.OnFeedChange(id)
	}
}

// NotifyRootChange broadcasts a change notification to all observers, each
// receiving the identifier it registered for. Used for global invalidation
// such as sign-out or block-list updates.
func (b *Bus) NotifyRootChange() {
	b.mu.Lock()
	var regs []registration
	for _, rs := range b.observers {
		regs = append(regs, rs...)
	}
	b.mu.Unlock()

	for _, r := range regs {
		r.observer.OnFeedChange(r.id)
	}
}
