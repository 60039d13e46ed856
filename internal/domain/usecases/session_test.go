package usecases

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeConn implements entities.Outbound for testing
type fakeConn struct{ name string }

func (f *fakeConn) Send(v any) bool { return true }

func TestSessionRegistry_CreatesNewUser(t *testing.T) {
	r := NewSessionRegistry("")
	conn := &fakeConn{}

	u, isNew := r.ResolveOrCreate("", "", conn)

	if !isNew {
		t.Error("expected a new user")
	}
	if u.DisplayName != DefaultDisplayName {
		t.Errorf("expected default name, got %q", u.DisplayName)
	}
	if !u.IsActive || u.Conn != conn {
		t.Error("new user should be active with the connection attached")
	}
}

func TestSessionRegistry_ReconnectKeepsIdentity(t *testing.T) {
	r := NewSessionRegistry("Anon")
	first, _ := r.ResolveOrCreate("", "alice", &fakeConn{})
	r.Deactivate(first.ID, first.Conn)

	second := &fakeConn{}
	u, isNew := r.ResolveOrCreate(first.ID.String(), "someone else", second)

	if isNew {
		t.Error("reconnect should not create a user")
	}
	if u.ID != first.ID || u.DisplayName != "alice" {
		t.Errorf("identity should persist, got %+v", u)
	}
	if !u.IsActive || u.Conn != second {
		t.Error("reconnected user should be active on the new connection")
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 user, got %d", r.Len())
	}
}

func TestSessionRegistry_FreshIDsWithoutUUID(t *testing.T) {
	r := NewSessionRegistry("")
	seen := make(map[uuid.UUID]bool)
	for i := 0; i < 50; i++ {
		u, isNew := r.ResolveOrCreate("", "", &fakeConn{})
		if !isNew {
			t.Fatal("connecting without an id should always create a user")
		}
		if seen[u.ID] {
			t.Fatalf("duplicate id %s", u.ID)
		}
		seen[u.ID] = true
	}
}

func TestSessionRegistry_UnknownOrInvalidID(t *testing.T) {
	r := NewSessionRegistry("")
	unknown := uuid.New()

	u, isNew := r.ResolveOrCreate(unknown.String(), "bob", &fakeConn{})
	if !isNew || u.ID == unknown {
		t.Error("unknown id should mint a new identity")
	}

	_, isNew = r.ResolveOrCreate("not-a-uuid", "", &fakeConn{})
	if !isNew {
		t.Error("invalid id should mint a new identity")
	}
}

func TestSessionRegistry_Deactivate(t *testing.T) {
	r := NewSessionRegistry("")
	conn := &fakeConn{}
	u, _ := r.ResolveOrCreate("", "carol", conn)

	r.Deactivate(u.ID, conn)

	got, ok := r.Lookup(u.ID)
	if !ok {
		t.Fatal("deactivated users are retained")
	}
	if got.IsActive || got.Conn != nil {
		t.Error("deactivate should clear both the flag and the connection")
	}
	if r.ActiveCount() != 0 {
		t.Errorf("expected 0 active, got %d", r.ActiveCount())
	}
}

func TestSessionRegistry_StaleDeactivateIgnored(t *testing.T) {
	r := NewSessionRegistry("")
	oldConn := &fakeConn{name: "old"}
	u, _ := r.ResolveOrCreate("", "dave", oldConn)

	newConn := &fakeConn{name: "new"}
	r.ResolveOrCreate(u.ID.String(), "", newConn)

	r.Deactivate(u.ID, oldConn)

	got, _ := r.Lookup(u.ID)
	if !got.IsActive || got.Conn != newConn {
		t.Error("closing an old connection should not detach the newer one")
	}
}

func TestSessionRegistry_ConcurrentAccess(t *testing.T) {
	r := NewSessionRegistry("")
	base, _ := r.ResolveOrCreate("", "shared", &fakeConn{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			u, _ := r.ResolveOrCreate(base.ID.String(), "", c)
			r.Deactivate(u.ID, c)
			r.ResolveOrCreate("", "", &fakeConn{})
		}()
	}
	wg.Wait()

	if r.Len() != 21 {
		t.Errorf("expected 21 users, got %d", r.Len())
	}
}
