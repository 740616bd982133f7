package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	b.Publish(E("conn.opened", nil))

	select {
	case evt := <-ch:
		if evt.Kind != "conn.opened" {
			t.Errorf("got kind %q, want conn.opened", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	b.Publish(E("conn.closed", nil))
	b.Publish(E("message.received", nil))

	select {
	case evt := <-ch:
		if evt.Kind != "message.received" {
			t.Errorf("got kind %q, want message.received", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the conn event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notify.", 10)
	unsub()

	b.Publish(E("notify.error", "boom"))

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 1)
	defer unsub()

	b.Publish(E("session.updated", "one"))
	// Dropped, buffer is full.
	b.Publish(E("session.updated", "two"))

	evt := <-ch
	if evt.Payload != "one" {
		t.Errorf("got payload %v, want one", evt.Payload)
	}
}
