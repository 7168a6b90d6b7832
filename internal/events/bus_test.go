package events

import (
	"testing"

	"github.com/gfycat/feedcore/internal/feedid"
)

// recorder collects the identifiers it was notified about.
type recorder struct {
	got []feedid.Identifier
}

func (r *recorder) OnFeedChange(id feedid.Identifier) { r.got = append(r.got, id) }

func tokens(ids []feedid.Identifier) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Serialize()
	}
	return out
}

func TestNotifyChange_DeliversOnlyToMatchingObservers(t *testing.T) {
	bus := NewBus()
	trending := feedid.Trending()
	search := feedid.FromSearch("cats")

	a := &recorder{}
	b := &recorder{}
	bus.RegisterFeedObserver(trending, a)
	bus.RegisterFeedObserver(search, b)

	bus.NotifyChange(trending)

	if len(a.got) != 1 || a.got[0].Serialize() != trending.Serialize() {
		t.Fatalf("observer a got %v; want one trending notification", tokens(a.got))
	}
	if len(b.got) != 0 {
		t.Fatalf("observer b got %v; want none", tokens(b.got))
	}
}

func TestNotifyChange_RegistrationOrder(t *testing.T) {
	bus := NewBus()
	id := feedid.Trending()

	var order []string
	first := &orderedObserver{name: "first", order: &order}
	second := &orderedObserver{name: "second", order: &order}
	bus.RegisterFeedObserver(id, first)
	bus.RegisterFeedObserver(id, second)

	bus.NotifyChange(id)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("delivery order = %v; want [first second]", order)
	}
}

type orderedObserver struct {
	name  string
	order *[]string
}

func (o *orderedObserver) OnFeedChange(feedid.Identifier) { *o.order = append(*o.order, o.name) }

func TestUnregister_RemovesAcrossAllIdentifiers(t *testing.T) {
	bus := NewBus()
	obs := &recorder{}
	bus.RegisterFeedObserver(feedid.Trending(), obs)
	bus.RegisterFeedObserver(feedid.Recent{}, obs)

	bus.UnregisterFeedObserver(obs)

	bus.NotifyChange(feedid.Trending())
	bus.NotifyChange(feedid.Recent{})
	if len(obs.got) != 0 {
		t.Fatalf("unregistered observer got %v; want none", tokens(obs.got))
	}
}

func TestUnregister_KeepsOtherObservers(t *testing.T) {
	bus := NewBus()
	id := feedid.Trending()
	gone := &recorder{}
	kept := &recorder{}
	bus.RegisterFeedObserver(id, gone)
	bus.RegisterFeedObserver(id, kept)

	bus.UnregisterFeedObserver(gone)
	bus.NotifyChange(id)

	if len(gone.got) != 0 {
		t.Fatalf("removed observer still notified: %v", tokens(gone.got))
	}
	if len(kept.got) != 1 {
		t.Fatalf("remaining observer got %v; want one notification", tokens(kept.got))
	}
}

func TestNotifyRootChange_BroadcastsRegisteredIdentifier(t *testing.T) {
	bus := NewBus()
	trending := feedid.Trending()
	recent := feedid.Recent{}

	a := &recorder{}
	b := &recorder{}
	bus.RegisterFeedObserver(trending, a)
	bus.RegisterFeedObserver(recent, b)

	bus.NotifyRootChange()

	if len(a.got) != 1 || a.got[0].Serialize() != trending.Serialize() {
		t.Fatalf("observer a got %v; want its registered trending id", tokens(a.got))
	}
	if len(b.got) != 1 || b.got[0].Serialize() != recent.Serialize() {
		t.Fatalf("observer b got %v; want its registered recent id", tokens(b.got))
	}
}

func TestUnregisterDuringDelivery_DoesNotSkipOthers(t *testing.T) {
	bus := NewBus()
	id := feedid.Trending()

	after := &recorder{}
	self := &selfRemovingObserver{}
	self.bus = bus
	bus.RegisterFeedObserver(id, self)
	bus.RegisterFeedObserver(id, after)

	bus.NotifyChange(id)
	if self.calls != 1 {
		t.Fatalf("self-removing observer called %d times; want 1", self.calls)
	}
	if len(after.got) != 1 {
		t.Fatalf("later observer got %v; want one notification", tokens(after.got))
	}

	// Second notification: self has removed itself.
	bus.NotifyChange(id)
	if self.calls != 1 {
		t.Fatalf("removed observer called again (%d calls)", self.calls)
	}
	if len(after.got) != 2 {
		t.Fatalf("remaining observer got %d notifications; want 2", len(after.got))
	}
}

type selfRemovingObserver struct {
	bus   *Bus
	calls int
}

func (o *selfRemovingObserver) OnFeedChange(feedid.Identifier) {
	o.calls++
	o.bus.UnregisterFeedObserver(o)
}

func TestRegister_IgnoresNil(t *testing.T) {
	bus := NewBus()
	bus.RegisterFeedObserver(nil, &recorder{})
	bus.RegisterFeedObserver(feedid.Trending(), nil)
	bus.UnregisterFeedObserver(nil)
	bus.NotifyChange(nil)
	bus.NotifyChange(feedid.Trending()) // no observers, must not panic
}
