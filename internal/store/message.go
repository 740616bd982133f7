package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// HistoryFetcher backfills historical messages from the server.
// PRIVATE history is addressed by the pair of user ids, GROUP history
// by the group id. Results are ascending by create time.
type HistoryFetcher interface {
	Conversation(ctx context.Context, userID1, userID2 int64, limit int) ([]Message, error)
	GroupConversation(ctx context.Context, groupID int64, limit int) ([]Message, error)
}

// messageSession is the cached message list for one session. The list
// is append-only in normal operation and replaced wholesale by a
// backfill; loaded marks whether a full-history backfill has happened.
type messageSession struct {
	list   []Message
	loaded bool
}

// MessageStore is the per-session message cache. It owns every
// messageSession; callers read and mutate only through its methods.
// An optional Archive receives a copy of everything for persistence
// and search; archive failures never affect the cache.
type MessageStore struct {
	mu       sync.Mutex
	sessions map[string]*messageSession
	history  HistoryFetcher
	archive  *Archive
	logger   *zap.Logger
}

// NewMessageStore creates a message store. archive may be nil to
// disable local persistence.
func NewMessageStore(history HistoryFetcher, archive *Archive, logger *zap.Logger) *MessageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageStore{
		sessions: make(map[string]*messageSession),
		history:  history,
		archive:  archive,
		logger:   logger,
	}
}

// Ensure creates an empty, unloaded cache entry if absent. Idempotent.
func (s *MessageStore) Ensure(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(sessionID)
}

func (s *MessageStore) ensureLocked(sessionID string) *messageSession {
	ms, ok := s.sessions[sessionID]
	if !ok {
		ms = &messageSession{}
		s.sessions[sessionID] = ms
	}
	return ms
}

// Append adds a message to a session's cache regardless of loaded
// state, creating the entry if needed.
func (s *MessageStore) Append(sessionID string, m Message) {
	s.mu.Lock()
	ms := s.ensureLocked(sessionID)
	ms.list = append(ms.list, m)
	s.mu.Unlock()

	s.persist(sessionID, m)
}

// MarkStatus updates the status of the message with the given temp id.
// Returns false when no such message is cached.
func (s *MessageStore) MarkStatus(sessionID, tempID string, st Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	for i := range ms.list {
		if ms.list[i].TempID == tempID {
			ms.list[i].Status = st
			return true
		}
	}
	return false
}

// Messages returns a copy of a session's cached messages, oldest
// first. Absent sessions yield an empty slice.
func (s *MessageStore) Messages(sessionID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Message, len(ms.list))
	copy(out, ms.list)
	return out
}

// Last returns the most recent cached message for a session.
func (s *MessageStore) Last(sessionID string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	if !ok || len(ms.list) == 0 {
		return Message{}, false
	}
	return ms.list[len(ms.list)-1], true
}

// Loaded reports whether a full-history backfill has completed for the
// session.
func (s *MessageStore) Loaded(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[sessionID]
	return ok && ms.loaded
}

// LoadHistory backfills a session from the history fetcher. A call
// with limit > 1 is a full-history request: it is a no-op once the
// session is loaded, and sets loaded on success. limit == 1 is the
// preview probe used by the session registry: it replaces the cached
// list but leaves loaded false so a later full load still fetches.
// Either way a loaded session never fetches again; its cache already
// ends with the latest message, so a probe has nothing to add.
//
// The fetch suspends without holding the lock; inbound frames may
// interleave, so the loaded flag is re-checked after the fetch
// returns. On fetch failure the prior cache state is untouched.
func (s *MessageStore) LoadHistory(ctx context.Context, sessionID string, kind ChatKind, selfID, targetID int64, limit int) error {
	full := limit != 1

	s.mu.Lock()
	ms := s.ensureLocked(sessionID)
	if ms.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var (
		msgs []Message
		err  error
	)
	switch kind {
	case ChatGroup:
		msgs, err = s.history.GroupConversation(ctx, targetID, limit)
	default:
		msgs, err = s.history.Conversation(ctx, selfID, targetID, limit)
	}
	if err != nil {
		return fmt.Errorf("load history %s: %w", sessionID, err)
	}
	for i := range msgs {
		msgs[i].Status = StatusSent
	}

	s.mu.Lock()
	ms = s.ensureLocked(sessionID)
	if ms.loaded {
		// A full load finished while we were fetching; keep its result.
		s.mu.Unlock()
		return nil
	}
	ms.list = msgs
	if full {
		ms.loaded = true
	}
	s.mu.Unlock()

	for _, m := range msgs {
		s.persist(sessionID, m)
	}
	return nil
}

func (s *MessageStore) persist(sessionID string, m Message) {
	if s.archive == nil {
		return
	}
	if err := s.archive.InsertMessage(sessionID, m); err != nil {
		s.logger.Warn("archive insert failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
