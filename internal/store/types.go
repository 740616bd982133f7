package store

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ChatKind discriminates one-to-one and group conversations.
type ChatKind string

const (
	ChatPrivate ChatKind = "PRIVATE"
	ChatGroup   ChatKind = "GROUP"
)

// MessageType is the payload type of a message.
type MessageType string

const (
	TypeText  MessageType = "TEXT"
	TypeImage MessageType = "IMAGE"
	TypeVideo MessageType = "VIDEO"
	TypeFile  MessageType = "FILE"
)

// Status is the local delivery state of a message.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is a chat message, inbound or outbound. ID is the server id
// and is zero until the server has acknowledged the message; TempID is
// the client-generated id used for outbound drafts in the meantime.
// Exactly one of ReceiverID (PRIVATE) or ReceiverGroupID (GROUP) is set.
type Message struct {
	ID              int64
	TempID          string
	SenderID        int64
	ReceiverID      int64
	ReceiverGroupID int64
	Content         string
	MessageType     MessageType
	ChatType        ChatKind
	CreateTime      int64 // unix ms, server-assigned
	Status          Status
}

// Session is a logical conversation entry in the session list.
type Session struct {
	ID            string
	Kind          ChatKind
	TargetID      int64
	Name          string
	Avatar        string
	LastMessage   string
	LastMessageAt int64 // unix ms, zero when no message seen yet
}

// SessionID builds the composite key used for all per-session maps.
func SessionID(kind ChatKind, targetID int64) string {
	return fmt.Sprintf("%s-%d", kind, targetID)
}

// ErrNoTarget is returned when a message carries no resolvable target.
var ErrNoTarget = errors.New("message has no resolvable target")

// SessionKey derives the session a message belongs to. For PRIVATE
// chat the session is keyed by the peer: the receiver when we sent it,
// the sender otherwise. For GROUP chat it is keyed by the group.
func (m Message) SessionKey(selfID int64) (string, error) {
	switch m.ChatType {
	case ChatGroup:
		if m.ReceiverGroupID == 0 {
			return "", ErrNoTarget
		}
		return SessionID(ChatGroup, m.ReceiverGroupID), nil
	default:
		peer := m.SenderID
		if m.SenderID == selfID {
			peer = m.ReceiverID
		}
		if peer == 0 {
			return "", ErrNoTarget
		}
		return SessionID(ChatPrivate, peer), nil
	}
}

// PreviewText renders the short, type-aware session-list preview.
func PreviewText(m Message) string {
	switch m.MessageType {
	case TypeImage:
		return "[image]"
	case TypeVideo:
		return "[video]"
	case TypeFile:
		return "[file]"
	default:
		return truncate(m.Content, 100)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so multi-byte content stays valid.
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
