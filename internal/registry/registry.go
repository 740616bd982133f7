// Package registry derives and owns the session list: one logical
// conversation per contact (PRIVATE) and per group (GROUP).
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/bus"
	"github.com/Swordingman/easychat/internal/rest"
	"github.com/Swordingman/easychat/internal/store"
)

// Source fetches the contact and group lists the session list is
// derived from.
type Source interface {
	ContactList(ctx context.Context) ([]rest.Contact, error)
	GroupList(ctx context.Context) ([]rest.Group, error)
}

// Prober is the slice of the message store used for preview backfills.
type Prober interface {
	LoadHistory(ctx context.Context, sessionID string, kind store.ChatKind, selfID, targetID int64, limit int) error
	Last(sessionID string) (store.Message, bool)
}

// Registry owns the set of sessions. Sessions are re-derived wholesale
// on Refresh; message-derived fields (preview, timestamp) are updated
// in place via Touch as messages flow.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*store.Session

	source   Source
	msgs     Prober
	identity auth.Provider
	bus      *bus.Bus
	logger   *zap.Logger
}

// New creates an empty registry.
func New(source Source, msgs Prober, identity auth.Provider, b *bus.Bus, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*store.Session),
		source:   source,
		msgs:     msgs,
		identity: identity,
		bus:      b,
		logger:   logger,
	}
}

// Refresh re-derives the session list from the contact and group
// lists. The two fetches run concurrently and both must succeed; on
// any failure the prior session list is retained unchanged. Each
// derived session gets a limit-1 preview probe so the list can show
// its latest message; probe failures degrade that one session only.
func (r *Registry) Refresh(ctx context.Context) error {
	id, ok := r.identity.Current()
	if !ok {
		return fmt.Errorf("refresh sessions: not logged in")
	}

	var (
		wg       sync.WaitGroup
		contacts []rest.Contact
		groups   []rest.Group
		cErr     error
		gErr     error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		contacts, cErr = r.source.ContactList(ctx)
	}()
	go func() {
		defer wg.Done()
		groups, gErr = r.source.GroupList(ctx)
	}()
	wg.Wait()
	if cErr != nil {
		return fmt.Errorf("refresh sessions: %w", cErr)
	}
	if gErr != nil {
		return fmt.Errorf("refresh sessions: %w", gErr)
	}

	derived := make(map[string]*store.Session, len(contacts)+len(groups))
	for _, c := range contacts {
		name := c.Nickname
		if name == "" {
			name = c.Username
		}
		s := &store.Session{
			ID:       store.SessionID(store.ChatPrivate, c.ID),
			Kind:     store.ChatPrivate,
			TargetID: c.ID,
			Name:     name,
			Avatar:   c.Avatar,
		}
		derived[s.ID] = s
	}
	for _, g := range groups {
		s := &store.Session{
			ID:       store.SessionID(store.ChatGroup, g.ID),
			Kind:     store.ChatGroup,
			TargetID: g.ID,
			Name:     g.GroupName,
			Avatar:   g.Avatar,
		}
		derived[s.ID] = s
	}

	for _, s := range derived {
		if err := r.msgs.LoadHistory(ctx, s.ID, s.Kind, id.UserID, s.TargetID, 1); err != nil {
			r.logger.Warn("preview probe failed", zap.String("session_id", s.ID), zap.Error(err))
			continue
		}
		if last, ok := r.msgs.Last(s.ID); ok {
			s.LastMessage = store.PreviewText(last)
			s.LastMessageAt = last.CreateTime
		}
	}

	r.mu.Lock()
	r.sessions = derived
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(bus.E("session.list_refreshed", len(derived)))
	}
	return nil
}

// Sessions returns the session list sorted by last-message time
// descending. Sessions that never saw a message sort last.
func (r *Registry) Sessions() []store.Session {
	r.mu.Lock()
	out := make([]store.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt > out[j].LastMessageAt
	})
	return out
}

// Get returns one session by id.
func (r *Registry) Get(sessionID string) (store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return store.Session{}, false
	}
	return *s, true
}

// Touch updates a session's preview and timestamp in place after a new
// message. Unknown session ids are ignored (the message is still
// cached; the entry appears on the next Refresh).
func (r *Registry) Touch(sessionID, preview string, at int64) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		s.LastMessage = preview
		s.LastMessageAt = at
	}
	r.mu.Unlock()

	if ok && r.bus != nil {
		r.bus.Publish(bus.E("session.updated", sessionID))
	}
}
