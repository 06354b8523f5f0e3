package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOutToSubscribers(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{UserID: "u1", DisplayName: "Alice", Action: ActionJoin})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.UserID != "u1" || e.Action != ActionJoin {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
			if e.At.IsZero() {
				t.Fatalf("subscriber %d: At not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{UserID: "u1", Action: ActionJoin})
	// Buffer is full; this must not block.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{UserID: "u2", Action: ActionJoin})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}

	e := <-ch
	if e.UserID != "u1" {
		t.Fatalf("buffered event = %+v", e)
	}
}

func TestUnsubscribeStopsDeliveryAndClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	// Publishing to a closed subscriber must not panic.
	b.Publish(Event{UserID: "u1", Action: ActionLeave})

	if _, ok := <-ch; ok {
		t.Fatalf("received an event after unsubscribe")
	}
}
