package core

import (
	"testing"

	"github.com/rentwire/rentwire-server/internal/store"
)

func testClient(role store.Role, roomID string) *Client {
	return NewClient(Identity{UserID: 1, Email: "x@example.com", Role: role, RoomID: roomID}, 4)
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := testClient(store.RoleTenant, "tenant-1")

	r.Join("tenant-1", c)
	r.Join("tenant-1", c)

	subs := r.Subscribers("tenant-1")
	if len(subs) != 1 || subs[0] != c {
		t.Fatalf("expected exactly one subscription, got %d", len(subs))
	}
}

func TestRegistry_AtMostOneRoom(t *testing.T) {
	r := NewRegistry()
	c := testClient(store.RoleLandlord, "")

	r.Join("tenant-1", c)
	left := r.Join("tenant-2", c)

	if left != "tenant-1" {
		t.Fatalf("expected implicit leave of tenant-1, got %q", left)
	}
	if got := len(r.Subscribers("tenant-1")); got != 0 {
		t.Errorf("expected tenant-1 empty after re-join, got %d subscribers", got)
	}
	if got := r.RoomOf(c); got != "tenant-2" {
		t.Errorf("expected membership in tenant-2, got %q", got)
	}
}

func TestRegistry_LeaveUnknownClientIsNoop(t *testing.T) {
	r := NewRegistry()
	c := testClient(store.RoleTenant, "tenant-1")

	if left := r.Leave(c); left != "" {
		t.Fatalf("expected no-op leave, got %q", left)
	}
}

func TestRegistry_EmptyRoomsArePruned(t *testing.T) {
	r := NewRegistry()
	a := testClient(store.RoleTenant, "tenant-1")
	b := testClient(store.RoleLandlord, "")

	r.Join("tenant-1", a)
	r.Join("tenant-1", b)
	r.Leave(a)
	r.Leave(b)

	if got := r.RoomCount(); got != 0 {
		t.Fatalf("expected departed rooms to be pruned, %d rooms remain", got)
	}
	if r.HasSubscribers("tenant-1") {
		t.Fatal("expected no subscribers after all clients left")
	}
}

func TestRegistry_SubscribersIsASnapshot(t *testing.T) {
	r := NewRegistry()
	a := testClient(store.RoleTenant, "tenant-1")
	b := testClient(store.RoleLandlord, "")
	r.Join("tenant-1", a)
	r.Join("tenant-1", b)

	snapshot := r.Subscribers("tenant-1")
	r.Leave(a)

	if len(snapshot) != 2 {
		t.Fatalf("snapshot must not be affected by later departures, got %d", len(snapshot))
	}
	if got := len(r.Subscribers("tenant-1")); got != 1 {
		t.Fatalf("expected one live subscriber after leave, got %d", got)
	}
}

func TestRegistry_SubscribersPreserveJoinOrder(t *testing.T) {
	r := NewRegistry()
	a := testClient(store.RoleTenant, "tenant-1")
	b := testClient(store.RoleLandlord, "")
	c := testClient(store.RoleLandlord, "")

	r.Join("tenant-1", a)
	r.Join("tenant-1", b)
	r.Join("tenant-1", c)

	subs := r.Subscribers("tenant-1")
	if len(subs) != 3 || subs[0] != a || subs[1] != b || subs[2] != c {
		t.Fatalf("expected join order [a b c], got %v", subs)
	}
}
