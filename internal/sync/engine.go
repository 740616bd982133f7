// Package sync is the synchronization engine: it owns the connection
// lifecycle, routes inbound frames into the message store and session
// registry, tracks unread counts and the active session, and carries
// outbound sends.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/bus"
	"github.com/Swordingman/easychat/internal/config"
	"github.com/Swordingman/easychat/internal/protocol"
	"github.com/Swordingman/easychat/internal/registry"
	"github.com/Swordingman/easychat/internal/status"
	"github.com/Swordingman/easychat/internal/store"
	"github.com/Swordingman/easychat/internal/transport"
)

// ErrNotAuthenticated is returned by Connect when no identity is
// available.
var ErrNotAuthenticated = errors.New("sync: not authenticated")

// ErrSendFailed wraps transport and serialization failures of Send;
// the draft is marked failed locally either way.
var ErrSendFailed = errors.New("sync: send failed")

// Dialer opens a transport connection. Injected so tests can swap the
// websocket for a fake.
type Dialer func(ctx context.Context, url, token string, h transport.Handler) (transport.Connection, error)

// Dial is the production dialer.
func Dial(ctx context.Context, url, token string, h transport.Handler) (transport.Connection, error) {
	return transport.Dial(ctx, url, token, h, nil)
}

// PendingFetcher serves the pending friend-request count.
type PendingFetcher interface {
	PendingRequestCount(ctx context.Context) (int, error)
}

// CloseInfo is the payload of conn.closed events.
type CloseInfo struct {
	Code   int
	Reason string
}

// Engine is the synchronization engine. At most one live connection
// and heartbeat pair exists at a time; both are owned fields, created
// by Connect and cleared by Close or the transport's terminal close.
type Engine struct {
	cfg      *config.Config
	identity auth.Provider
	dial     Dialer
	registry *registry.Registry
	msgs     *store.MessageStore
	pending  PendingFetcher
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger

	mu           sync.Mutex
	conn         transport.Connection
	hb           *transport.Heartbeat
	selfID       int64
	active       string
	unread       map[string]int
	pendingCount int
	pollCancel   context.CancelFunc
}

// NewEngine creates the engine. Nothing is connected until Connect.
func NewEngine(
	cfg *config.Config,
	identity auth.Provider,
	dial Dialer,
	reg *registry.Registry,
	msgs *store.MessageStore,
	pending PendingFetcher,
	machine *status.Machine,
	b *bus.Bus,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		identity: identity,
		dial:     dial,
		registry: reg,
		msgs:     msgs,
		pending:  pending,
		machine:  machine,
		bus:      b,
		logger:   logger,
		unread:   make(map[string]int),
	}
}

// Connect establishes the websocket connection and starts the
// heartbeat. It is rejected when not authenticated; a connect while a
// handle already exists is a no-op, not an error. There is no
// automatic reconnect after a close.
func (e *Engine) Connect(ctx context.Context) error {
	id, ok := e.identity.Current()
	if !ok {
		return ErrNotAuthenticated
	}

	e.mu.Lock()
	if e.conn != nil {
		e.mu.Unlock()
		return nil
	}
	if err := e.machine.Transition(status.Connecting); err != nil {
		// A concurrent connect is already in flight.
		e.mu.Unlock()
		return nil
	}
	e.selfID = id.UserID
	e.mu.Unlock()

	conn, err := e.dial(ctx, e.cfg.ServerURL, id.Token, e)
	if err != nil {
		_ = e.machine.Transition(status.Disconnected)
		e.notify(fmt.Sprintf("chat server unreachable: %v", err))
		return fmt.Errorf("connect: %w", err)
	}

	e.mu.Lock()
	if err := e.machine.Transition(status.Connected); err != nil {
		// A close landed while the dial was in flight; the machine is
		// back at Disconnected. Drop the fresh connection.
		e.mu.Unlock()
		_ = conn.Close()
		e.logger.Info("connection discarded, closed during dial")
		return nil
	}
	e.conn = conn
	e.hb = transport.NewHeartbeat(conn, time.Duration(e.cfg.HeartbeatSeconds)*time.Second, e.logger)
	e.hb.Start()
	e.mu.Unlock()

	conn.Start()
	e.logger.Info("connected", zap.String("url", e.cfg.ServerURL), zap.Int64("user_id", id.UserID))
	e.bus.Publish(bus.E("conn.opened", nil))
	return nil
}

// Close stops the heartbeat and tears down the connection. Idempotent.
// The heartbeat is cancelled synchronously before the socket closes,
// so no ping fires on a cleared handle.
func (e *Engine) Close() {
	e.mu.Lock()
	hb, conn := e.hb, e.conn
	e.hb, e.conn = nil, nil
	e.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if e.machine.Current() != status.Disconnected {
		_ = e.machine.Transition(status.Disconnected)
	}
}

// State returns the current connection state.
func (e *Engine) State() status.State {
	return e.machine.Current()
}

// HandleFrame is the single inbound ingress: every frame the transport
// reads lands here.
func (e *Engine) HandleFrame(data []byte) {
	frame, err := protocol.Parse(data)
	if err != nil {
		e.logger.Warn("dropping frame", zap.Error(err))
		e.notify("received an unreadable message from the server")
		return
	}

	switch frame.Kind {
	case protocol.FramePong:
		// Liveness note only.
		e.logger.Debug("heartbeat pong")
	case protocol.FrameError:
		e.logger.Warn("server error frame", zap.String("content", frame.ErrorText))
		e.notify(frame.ErrorText)
	case protocol.FrameChat:
		e.ingest(frame.Message)
	}
}

func (e *Engine) ingest(m store.Message) {
	e.mu.Lock()
	selfID := e.selfID
	e.mu.Unlock()
	if id, ok := e.identity.Current(); ok {
		selfID = id.UserID
	}

	key, err := m.SessionKey(selfID)
	if err != nil {
		e.logger.Warn("dropping message without target",
			zap.Int64("sender_id", m.SenderID),
			zap.Error(err))
		return
	}

	e.msgs.Append(key, m)
	e.registry.Touch(key, store.PreviewText(m), m.CreateTime)

	e.mu.Lock()
	if key != e.active {
		e.unread[key]++
	}
	e.mu.Unlock()

	e.bus.Publish(bus.E("message.received", key))
}

// HandleClose is the transport's terminal event. The heartbeat is
// stopped and the handle cleared; no reconnect is attempted.
func (e *Engine) HandleClose(code int, reason string) {
	e.mu.Lock()
	hb := e.hb
	e.hb, e.conn = nil, nil
	e.mu.Unlock()

	if hb != nil {
		hb.Stop()
	}
	if e.machine.Current() != status.Disconnected {
		_ = e.machine.Transition(status.Disconnected)
	}
	e.logger.Info("connection closed", zap.Int("code", code), zap.String("reason", reason))
	e.bus.Publish(bus.E("conn.closed", CloseInfo{Code: code, Reason: reason}))
}

// HandleError surfaces transport errors; the terminal close still
// follows separately.
func (e *Engine) HandleError(err error) {
	e.logger.Warn("connection error", zap.Error(err))
	e.notify(fmt.Sprintf("chat connection error: %v", err))
}

// Send carries an outbound draft: the caller fills target, content and
// message type. The draft is stamped with the sender, a temp id and
// sending status, appended optimistically so the UI shows it
// immediately, then written to the wire and marked sent. On any
// failure it is marked failed in place; the connection is left alone.
func (e *Engine) Send(draft store.Message) (store.Message, error) {
	id, ok := e.identity.Current()
	if !ok {
		return draft, ErrNotAuthenticated
	}

	draft.SenderID = id.UserID
	draft.TempID = uuid.NewString()
	draft.Status = store.StatusSending
	if draft.CreateTime == 0 {
		draft.CreateTime = time.Now().UnixMilli()
	}
	if draft.MessageType == "" {
		draft.MessageType = store.TypeText
	}

	key, err := draft.SessionKey(id.UserID)
	if err != nil {
		return draft, err
	}

	e.msgs.Append(key, draft)
	e.registry.Touch(key, store.PreviewText(draft), draft.CreateTime)
	e.bus.Publish(bus.E("message.upserted", key))

	fail := func(cause error) (store.Message, error) {
		draft.Status = store.StatusFailed
		e.msgs.MarkStatus(key, draft.TempID, store.StatusFailed)
		e.logger.Warn("send failed", zap.String("temp_id", draft.TempID), zap.Error(cause))
		e.notify("message could not be sent")
		e.bus.Publish(bus.E("message.send_failed", draft.TempID))
		return draft, fmt.Errorf("%w: %v", ErrSendFailed, cause)
	}

	data, err := protocol.ChatFrame(draft)
	if err != nil {
		return fail(err)
	}

	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return fail(transport.ErrNotConnected)
	}
	if err := conn.Send(data); err != nil {
		return fail(err)
	}

	// The write succeeding is the only acknowledgement this protocol
	// offers, so the draft goes straight to sent.
	draft.Status = store.StatusSent
	e.msgs.MarkStatus(key, draft.TempID, store.StatusSent)
	e.bus.Publish(bus.E("message.sent", draft.TempID))
	return draft, nil
}

// SetActiveSession marks a session active. Its unread counter drops to
// zero and stays zero while active.
func (e *Engine) SetActiveSession(sessionID string) {
	e.mu.Lock()
	e.active = sessionID
	if sessionID != "" {
		delete(e.unread, sessionID)
	}
	e.mu.Unlock()

	if sessionID != "" {
		e.msgs.Ensure(sessionID)
	}
	e.bus.Publish(bus.E("session.activated", sessionID))
}

// ActiveSession returns the active session id, empty when none.
func (e *Engine) ActiveSession() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Unread returns the unread count for a session.
func (e *Engine) Unread(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread[sessionID]
}

// OpenSession activates a session and lazily backfills its full
// history. The backfill fetches at most once; a failure leaves the
// cache as it was and is surfaced, not fatal.
func (e *Engine) OpenSession(ctx context.Context, sessionID string) error {
	s, ok := e.registry.Get(sessionID)
	if !ok {
		return fmt.Errorf("open session: unknown session %q", sessionID)
	}
	id, okID := e.identity.Current()
	if !okID {
		return ErrNotAuthenticated
	}

	e.SetActiveSession(sessionID)
	if err := e.msgs.LoadHistory(ctx, sessionID, s.Kind, id.UserID, s.TargetID, e.cfg.HistoryLimit); err != nil {
		e.logger.Warn("history load failed", zap.String("session_id", sessionID), zap.Error(err))
		e.notify("could not load message history for this conversation")
		return err
	}
	return nil
}

func (e *Engine) notify(text string) {
	if text == "" {
		text = "the chat server reported an error"
	}
	e.bus.Publish(bus.E("notify.error", text))
}
