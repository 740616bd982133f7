package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/bus"
)

// StartPolling begins the pending friend-request poll: one periodic
// task owned by the engine's lifecycle, started on login and stopped
// on logout. An immediate fetch runs before the first tick.
func (e *Engine) StartPolling(ctx context.Context) {
	e.mu.Lock()
	if e.pollCancel != nil {
		e.mu.Unlock()
		return
	}
	ctx, e.pollCancel = context.WithCancel(ctx)
	e.mu.Unlock()

	go e.pollLoop(ctx)
}

// StopPolling cancels the poll task and resets the count.
func (e *Engine) StopPolling() {
	e.mu.Lock()
	cancel := e.pollCancel
	e.pollCancel = nil
	e.pendingCount = 0
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// PendingRequests returns the last polled pending-request count.
func (e *Engine) PendingRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingCount
}

func (e *Engine) pollLoop(ctx context.Context) {
	e.pollOnce(ctx)

	ticker := time.NewTicker(time.Duration(e.cfg.PollSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.pollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	if _, ok := e.identity.Current(); !ok {
		return
	}
	count, err := e.pending.PendingRequestCount(ctx)
	if err != nil {
		// Polling is background noise; log and try again next tick.
		e.logger.Warn("pending request poll failed", zap.Error(err))
		return
	}

	e.mu.Lock()
	changed := count != e.pendingCount
	e.pendingCount = count
	e.mu.Unlock()

	if changed {
		e.bus.Publish(bus.E("request.count_changed", count))
	}
}
