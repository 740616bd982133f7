package bus

import "time"

// Event is a domain event published on the bus. Kind is a dotted name
// such as "conn.opened" or "message.received"; subscribers filter by
// prefix ("conn.", "message.", "session.", "request.", "notify.").
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// E builds an event stamped with the current time.
func E(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
