package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/store"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, auth.Static{Identity: auth.Identity{Token: "tok", UserID: 1}}, nil)
}

func TestContactListSendsBearerToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/contact/list" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`[{"id":2,"username":"bob","nickname":"Bob","avatar":"a.png"}]`))
	})

	contacts, err := c.ContactList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].ID != 2 || contacts[0].Nickname != "Bob" {
		t.Errorf("contacts = %+v", contacts)
	}
}

func TestGroupList(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":9,"groupName":"dev","avatar":""}]`))
	})

	groups, err := c.GroupList(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || groups[0].GroupName != "dev" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestConversationQueryParams(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("userId1") != "1" || q.Get("userId2") != "2" || q.Get("limit") != "50" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`[{"id":5,"senderId":2,"receiverId":1,"content":"hi","messageType":"TEXT","chatType":"PRIVATE","createTime":1700000000000}]`))
	})

	msgs, err := c.Conversation(context.Background(), 1, 2, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != 5 || msgs[0].ChatType != store.ChatPrivate {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestGroupConversation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("groupId") != "9" {
			t.Errorf("query = %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`[{"id":6,"senderId":3,"receiverGroupId":9,"content":"yo","messageType":"TEXT","chatType":"GROUP","createTime":1700000000001}]`))
	})

	msgs, err := c.GroupConversation(context.Background(), 9, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ReceiverGroupID != 9 || msgs[0].ChatType != store.ChatGroup {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestPendingRequestCount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	})

	n, err := c.PendingRequestCount(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestNonOKStatusIsError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.ContactList(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}
