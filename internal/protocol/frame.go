// Package protocol implements the easychat wire codec: JSON text
// frames over the websocket. Inbound payloads are parsed once at the
// boundary into a tagged Frame; everything past this package works
// with typed values only.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Swordingman/easychat/internal/store"
)

// Wire type discriminators.
const (
	typeHeartbeatPing = "HEARTBEAT_PING"
	typeHeartbeatPong = "HEARTBEAT_PONG"
	typeError         = "ERROR"
	typePrivateChat   = "PRIVATE_CHAT"
	typeGroupChat     = "GROUP_CHAT"
)

// FrameKind discriminates parsed inbound frames.
type FrameKind int

const (
	// FramePong is the server's reply to a keep-alive ping.
	FramePong FrameKind = iota + 1
	// FrameError carries a human-readable server error.
	FrameError
	// FrameChat carries a chat message.
	FrameChat
)

// Frame is a parsed inbound frame.
type Frame struct {
	Kind      FrameKind
	ErrorText string        // FrameError only
	Message   store.Message // FrameChat only
}

// ErrUnknownFrame is returned for well-formed JSON that matches no
// recognized frame shape.
var ErrUnknownFrame = errors.New("unknown frame shape")

type wireFrame struct {
	Type            string `json:"type,omitempty"`
	ID              int64  `json:"id,omitempty"`
	SenderID        int64  `json:"senderId,omitempty"`
	ReceiverID      int64  `json:"receiverId,omitempty"`
	ReceiverGroupID int64  `json:"receiverGroupId,omitempty"`
	Content         string `json:"content,omitempty"`
	MessageType     string `json:"messageType,omitempty"`
	ChatType        string `json:"chatType,omitempty"`
	CreateTime      int64  `json:"createTime,omitempty"`
}

// Parse decodes one inbound frame. A frame with no type but a present
// senderId is a chat message; anything else unrecognized is rejected
// with ErrUnknownFrame rather than silently dropped.
func Parse(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch w.Type {
	case typeHeartbeatPong:
		return Frame{Kind: FramePong}, nil
	case typeError:
		return Frame{Kind: FrameError, ErrorText: w.Content}, nil
	}

	if w.SenderID != 0 {
		chatType := store.ChatKind(w.ChatType)
		if chatType == "" {
			chatType = store.ChatPrivate
		}
		return Frame{
			Kind: FrameChat,
			Message: store.Message{
				ID:              w.ID,
				SenderID:        w.SenderID,
				ReceiverID:      w.ReceiverID,
				ReceiverGroupID: w.ReceiverGroupID,
				Content:         w.Content,
				MessageType:     store.MessageType(w.MessageType),
				ChatType:        chatType,
				CreateTime:      w.CreateTime,
				Status:          store.StatusSent,
			},
		}, nil
	}

	return Frame{}, fmt.Errorf("%w: type=%q", ErrUnknownFrame, w.Type)
}

// Ping returns the outbound keep-alive frame.
func Ping() []byte {
	return []byte(`{"type":"HEARTBEAT_PING"}`)
}

// ChatFrame encodes an outbound chat message.
func ChatFrame(m store.Message) ([]byte, error) {
	w := wireFrame{
		Content:     m.Content,
		MessageType: string(m.MessageType),
		ChatType:    string(m.ChatType),
	}
	switch m.ChatType {
	case store.ChatGroup:
		if m.ReceiverGroupID == 0 {
			return nil, store.ErrNoTarget
		}
		w.Type = typeGroupChat
		w.ReceiverGroupID = m.ReceiverGroupID
	default:
		if m.ReceiverID == 0 {
			return nil, store.ErrNoTarget
		}
		w.Type = typePrivateChat
		w.ReceiverID = m.ReceiverID
	}
	return json.Marshal(w)
}
