package status

import (
	"testing"
	"time"

	"github.com/Swordingman/easychat/internal/bus"
)

func TestTransitions(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Fatalf("initial state = %s", m.Current())
	}

	steps := []State{Connecting, Connected, Disconnected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if m.Current() != Disconnected {
		t.Errorf("final state = %s", m.Current())
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	// Disconnected cannot jump straight to Connected.
	if err := m.Transition(Connected); err == nil {
		t.Error("expected invalid transition error")
	}
	if m.Current() != Disconnected {
		t.Errorf("state mutated on invalid transition: %s", m.Current())
	}
}

func TestDialFailureReturnsToDisconnected(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}
	if err := m.Transition(Disconnected); err != nil {
		t.Fatal(err)
	}
}

func TestTransitionPublishesStatusChange(t *testing.T) {
	b := bus.New()
	m := NewMachine(b)
	ch, unsub := b.Subscribe("conn.", 10)
	defer unsub()

	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		sc, ok := evt.Payload.(StatusChange)
		if !ok || sc.From != Disconnected || sc.To != Connecting {
			t.Errorf("payload = %+v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status change event")
	}
}
