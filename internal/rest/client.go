// Package rest is the HTTP client for the non-messaging resources of
// the chat server: contact and group lists, conversation history, and
// pending friend requests.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/store"
)

// Contact is a friend record from the contact list.
type Contact struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// Group is a group record from the group list.
type Group struct {
	ID        int64  `json:"id"`
	GroupName string `json:"groupName"`
	Avatar    string `json:"avatar"`
}

// Client calls the easychat HTTP API with the current identity's
// bearer token.
type Client struct {
	base     string
	http     *http.Client
	identity auth.Provider
	logger   *zap.Logger
}

// NewClient creates a REST client for the given base URL.
func NewClient(base string, identity auth.Provider, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:     base,
		http:     &http.Client{Timeout: 10 * time.Second},
		identity: identity,
		logger:   logger,
	}
}

// ContactList fetches the logged-in user's contacts.
func (c *Client) ContactList(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := c.get(ctx, "/api/contact/list", nil, &contacts); err != nil {
		return nil, fmt.Errorf("contact list: %w", err)
	}
	return contacts, nil
}

// GroupList fetches the groups the logged-in user belongs to.
func (c *Client) GroupList(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.get(ctx, "/api/group/list", nil, &groups); err != nil {
		return nil, fmt.Errorf("group list: %w", err)
	}
	return groups, nil
}

// Conversation fetches up to limit historical messages between two
// users, ascending by create time.
func (c *Client) Conversation(ctx context.Context, userID1, userID2 int64, limit int) ([]store.Message, error) {
	q := url.Values{
		"userId1": {strconv.FormatInt(userID1, 10)},
		"userId2": {strconv.FormatInt(userID2, 10)},
		"limit":   {strconv.Itoa(limit)},
	}
	var msgs []wireMessage
	if err := c.get(ctx, "/api/message/conversation", q, &msgs); err != nil {
		return nil, fmt.Errorf("conversation: %w", err)
	}
	return toMessages(msgs), nil
}

// GroupConversation fetches up to limit historical messages of a
// group, ascending by create time.
func (c *Client) GroupConversation(ctx context.Context, groupID int64, limit int) ([]store.Message, error) {
	q := url.Values{
		"groupId": {strconv.FormatInt(groupID, 10)},
		"limit":   {strconv.Itoa(limit)},
	}
	var msgs []wireMessage
	if err := c.get(ctx, "/api/message/group_conversation", q, &msgs); err != nil {
		return nil, fmt.Errorf("group conversation: %w", err)
	}
	return toMessages(msgs), nil
}

// PendingRequestCount fetches the number of pending friend requests.
func (c *Client) PendingRequestCount(ctx context.Context) (int, error) {
	var requests []json.RawMessage
	if err := c.get(ctx, "/api/contact/requests", nil, &requests); err != nil {
		return 0, fmt.Errorf("pending requests: %w", err)
	}
	return len(requests), nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if id, ok := c.identity.Current(); ok {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type wireMessage struct {
	ID              int64  `json:"id"`
	SenderID        int64  `json:"senderId"`
	ReceiverID      int64  `json:"receiverId"`
	ReceiverGroupID int64  `json:"receiverGroupId"`
	Content         string `json:"content"`
	MessageType     string `json:"messageType"`
	ChatType        string `json:"chatType"`
	CreateTime      int64  `json:"createTime"`
}

func toMessages(ws []wireMessage) []store.Message {
	msgs := make([]store.Message, 0, len(ws))
	for _, w := range ws {
		chatType := store.ChatKind(w.ChatType)
		if chatType == "" {
			chatType = store.ChatPrivate
		}
		msgs = append(msgs, store.Message{
			ID:              w.ID,
			SenderID:        w.SenderID,
			ReceiverID:      w.ReceiverID,
			ReceiverGroupID: w.ReceiverGroupID,
			Content:         w.Content,
			MessageType:     store.MessageType(w.MessageType),
			ChatType:        chatType,
			CreateTime:      w.CreateTime,
		})
	}
	return msgs
}
