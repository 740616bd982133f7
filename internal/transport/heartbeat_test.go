package transport

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeConn records sent frames.
type fakeConn struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Start()       {}
func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestHeartbeatEmitsPings(t *testing.T) {
	conn := &fakeConn{}
	hb := NewHeartbeat(conn, 10*time.Millisecond, nil)
	hb.Start()

	deadline := time.Now().Add(time.Second)
	for conn.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hb.Stop()

	if conn.count() < 2 {
		t.Fatalf("sent %d pings, want >= 2", conn.count())
	}
	conn.mu.Lock()
	frame := string(conn.sent[0])
	conn.mu.Unlock()
	if !strings.Contains(frame, "HEARTBEAT_PING") {
		t.Errorf("frame = %s", frame)
	}
}

func TestHeartbeatStopHaltsSends(t *testing.T) {
	conn := &fakeConn{}
	hb := NewHeartbeat(conn, 10*time.Millisecond, nil)
	hb.Start()
	time.Sleep(35 * time.Millisecond)
	hb.Stop()

	// After Stop returns no further ping may be written.
	n := conn.count()
	time.Sleep(50 * time.Millisecond)
	if conn.count() != n {
		t.Errorf("pings after Stop: %d -> %d", n, conn.count())
	}

	// Stop is safe to repeat.
	hb.Stop()
}

func TestHeartbeatStopWithoutStart(t *testing.T) {
	hb := NewHeartbeat(&fakeConn{}, time.Second, nil)
	hb.Stop()
}

func TestHeartbeatAbsorbsSendErrors(t *testing.T) {
	conn := &fakeConn{err: ErrNotConnected}
	hb := NewHeartbeat(conn, 10*time.Millisecond, nil)
	hb.Start()
	time.Sleep(35 * time.Millisecond)
	hb.Stop()
	// No panic, no retry queue; nothing to assert beyond survival.
}
