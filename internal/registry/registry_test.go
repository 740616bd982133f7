package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/Swordingman/easychat/internal/auth"
	"github.com/Swordingman/easychat/internal/rest"
	"github.com/Swordingman/easychat/internal/store"
)

type fakeSource struct {
	contacts []rest.Contact
	groups   []rest.Group
	cErr     error
	gErr     error
}

func (f *fakeSource) ContactList(context.Context) ([]rest.Contact, error) {
	return f.contacts, f.cErr
}

func (f *fakeSource) GroupList(context.Context) ([]rest.Group, error) {
	return f.groups, f.gErr
}

// fakeProber serves a fixed last message per session.
type fakeProber struct {
	last   map[string]store.Message
	probes int
	err    error
}

func (f *fakeProber) LoadHistory(_ context.Context, sessionID string, _ store.ChatKind, _, _ int64, limit int) error {
	if limit != 1 {
		return errors.New("registry must probe with limit=1")
	}
	f.probes++
	return f.err
}

func (f *fakeProber) Last(sessionID string) (store.Message, bool) {
	m, ok := f.last[sessionID]
	return m, ok
}

var ident = auth.Static{Identity: auth.Identity{Token: "t", UserID: 1}}

func TestRefreshDerivesSessions(t *testing.T) {
	src := &fakeSource{
		contacts: []rest.Contact{{ID: 2, Username: "bob", Nickname: "Bob"}},
		groups:   []rest.Group{{ID: 9, GroupName: "dev"}},
	}
	probe := &fakeProber{last: map[string]store.Message{
		"PRIVATE-2": {Content: "hi", MessageType: store.TypeText, CreateTime: 200},
	}}
	r := New(src, probe, ident, nil, nil)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	sessions := r.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	// PRIVATE-2 saw a message, so it sorts first.
	if sessions[0].ID != "PRIVATE-2" || sessions[0].LastMessage != "hi" {
		t.Errorf("first session = %+v", sessions[0])
	}
	if sessions[1].ID != "GROUP-9" || sessions[1].LastMessageAt != 0 {
		t.Errorf("second session = %+v", sessions[1])
	}
	if probe.probes != 2 {
		t.Errorf("probes = %d, want 2", probe.probes)
	}
}

func TestRefreshFailureRetainsPriorList(t *testing.T) {
	src := &fakeSource{contacts: []rest.Contact{{ID: 2, Username: "bob"}}}
	r := New(src, &fakeProber{}, ident, nil, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// One of the two fetches failing fails the whole refresh.
	src.groups = []rest.Group{{ID: 9, GroupName: "dev"}}
	src.gErr = errors.New("boom")
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	sessions := r.Sessions()
	if len(sessions) != 1 || sessions[0].ID != "PRIVATE-2" {
		t.Errorf("prior list not retained: %+v", sessions)
	}
}

func TestRefreshRequiresIdentity(t *testing.T) {
	r := New(&fakeSource{}, &fakeProber{}, auth.Static{}, nil, nil)
	if err := r.Refresh(context.Background()); err == nil {
		t.Error("expected error without identity")
	}
}

func TestProbeFailureDegradesOneSession(t *testing.T) {
	src := &fakeSource{contacts: []rest.Contact{{ID: 2, Username: "bob"}}}
	r := New(src, &fakeProber{err: errors.New("probe down")}, ident, nil, nil)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("probe failure must not fail the refresh: %v", err)
	}
	sessions := r.Sessions()
	if len(sessions) != 1 || sessions[0].LastMessage != "" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestTouchReordersSessions(t *testing.T) {
	src := &fakeSource{contacts: []rest.Contact{
		{ID: 2, Username: "a"}, {ID: 3, Username: "b"}, {ID: 4, Username: "c"},
	}}
	r := New(src, &fakeProber{}, ident, nil, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Messages arrive C(T1), A(T2), B(T3).
	r.Touch("PRIVATE-4", "t1", 100)
	r.Touch("PRIVATE-2", "t2", 200)
	r.Touch("PRIVATE-3", "t3", 300)

	got := r.Sessions()
	want := []string{"PRIVATE-3", "PRIVATE-2", "PRIVATE-4"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s (full: %v)", i, got[i].ID, id, got)
		}
	}
}

func TestTouchUnknownSessionIgnored(t *testing.T) {
	r := New(&fakeSource{}, &fakeProber{}, ident, nil, nil)
	r.Touch("PRIVATE-99", "x", 1)
	if len(r.Sessions()) != 0 {
		t.Error("touch must not create sessions")
	}
}

func TestRefreshPreservesNicknameFallback(t *testing.T) {
	src := &fakeSource{contacts: []rest.Contact{{ID: 5, Username: "eve"}}}
	r := New(src, &fakeProber{}, ident, nil, nil)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s, _ := r.Get("PRIVATE-5"); s.Name != "eve" {
		t.Errorf("name = %q, want username fallback", s.Name)
	}
}
