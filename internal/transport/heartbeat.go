package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/protocol"
)

// Heartbeat emits a keep-alive ping over its connection at a fixed
// interval. It is scoped to one connection and exists only while that
// connection is up: the owner starts it on connect and stops it before
// closing. Send failures are absorbed; liveness loss is only observed
// through the connection's own close/error events.
type Heartbeat struct {
	conn     Connection
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewHeartbeat creates a heartbeat for conn.
func NewHeartbeat(conn Connection, interval time.Duration, logger *zap.Logger) *Heartbeat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Heartbeat{
		conn:     conn,
		interval: interval,
		logger:   logger,
	}
}

// Start begins emitting pings. The owner creates one Heartbeat per
// connection and calls Start exactly once.
func (h *Heartbeat) Start() {
	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.loop()
}

func (h *Heartbeat) loop() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.conn.Send(protocol.Ping()); err != nil {
				// Skipped, not queued: the connection guard already
				// rejected the write.
				h.logger.Debug("heartbeat skipped", zap.Error(err))
			}
		case <-h.stop:
			return
		}
	}
}

// Stop cancels the timer and waits for the loop to exit, so no ping is
// written after Stop returns. Safe to call when never started or
// already stopped.
func (h *Heartbeat) Stop() {
	if h.stop == nil {
		return
	}
	select {
	case <-h.stop:
		// Already stopped.
	default:
		close(h.stop)
	}
	<-h.done
}
