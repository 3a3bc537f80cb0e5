package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/store"
)

// fakeMessageStore is an in-memory store.MessageStore with fault injection.
type fakeMessageStore struct {
	mu         sync.Mutex
	nextID     int64
	msgs       []*store.Message
	failAppend error
}

func (f *fakeMessageStore) AppendMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppend != nil {
		return nil, f.failAppend
	}
	f.nextID++
	persisted := *msg
	persisted.ID = f.nextID
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = time.Now()
	}
	f.msgs = append(f.msgs, &persisted)
	out := persisted
	return &out, nil
}

func (f *fakeMessageStore) GetMessageByID(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			out := *m
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeMessageStore) ListRoomMessages(_ context.Context, roomID string, sinceID int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Message, 0)
	for _, m := range f.msgs {
		if m.RoomID == roomID && m.ID > sinceID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListMessages(_ context.Context, sinceID int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Message, 0)
	for _, m := range f.msgs {
		if m.ID > sinceID {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMessageStore) MarkMessageRead(_ context.Context, id int64) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			m.Read = true
			out := *m
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeMessageStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func newTestChannel(echo bool) (*Channel, *fakeMessageStore) {
	st := &fakeMessageStore{}
	logger := zerolog.New(nil)
	return NewChannel(NewRegistry(), st, echo, &logger), st
}

func drainEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case event := <-c.Events():
		return event
	default:
		t.Fatal("expected a pending event")
		return Event{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case event := <-c.Events():
		t.Fatalf("expected no event, got kind=%d", event.Kind)
	default:
	}
}

var (
	landlordID = Identity{UserID: 1, Email: "landlord@example.com", Role: store.RoleLandlord}
	tenant7ID  = Identity{UserID: 2, Email: "t7@example.com", Role: store.RoleTenant, RoomID: "tenant-7"}
	tenant9ID  = Identity{UserID: 3, Email: "t9@example.com", Role: store.RoleTenant, RoomID: "tenant-9"}
)

func TestPublish_PersistsBeforeFanout(t *testing.T) {
	ch, st := newTestChannel(true)
	ctx := context.Background()

	landlord := NewClient(landlordID, 8)
	if err := ch.Join(ctx, landlord, "tenant-7"); err != nil {
		t.Fatalf("join: %v", err)
	}
	drainEvent(t, landlord) // history on join

	persisted, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "hello")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if persisted.ID == 0 {
		t.Fatal("expected persisted message with assigned id")
	}

	event := drainEvent(t, landlord)
	if event.Kind != EventRoomMessage {
		t.Fatalf("expected room message event, got kind=%d", event.Kind)
	}
	// The delivered copy is the persisted record, so it was durable before
	// any subscriber could observe it.
	if event.Message.ID != persisted.ID {
		t.Fatalf("fan-out delivered id=%d, persisted id=%d", event.Message.ID, persisted.ID)
	}
	if _, err := st.GetMessageByID(ctx, persisted.ID); err != nil {
		t.Fatalf("persisted message not retrievable: %v", err)
	}
}

func TestPublish_PersistFailureAbortsFanout(t *testing.T) {
	ch, st := newTestChannel(true)
	ctx := context.Background()
	st.failAppend = errors.New("disk full")

	landlord := NewClient(landlordID, 8)
	if err := ch.Join(ctx, landlord, "tenant-7"); err != nil {
		t.Fatalf("join: %v", err)
	}
	drainEvent(t, landlord)

	_, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "hello")
	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodePersistFailed {
		t.Fatalf("expected persist_failed, got %v", err)
	}

	requireNoEvent(t, landlord)
	if st.count() != 0 {
		t.Fatal("no message should be stored after a failed append")
	}
}

func TestPublish_TenantCannotAddressForeignRoom(t *testing.T) {
	ch, st := newTestChannel(true)

	_, err := ch.Publish(context.Background(), tenant7ID, nil, "tenant-9", "hello")
	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if st.count() != 0 {
		t.Fatal("forbidden publish must have no effects")
	}
}

func TestPublish_FailedDeliveryDoesNotAbortOthers(t *testing.T) {
	ch, _ := newTestChannel(true)
	ctx := context.Background()

	slow := NewClient(landlordID, 1)
	healthy := NewClient(landlordID, 8)
	if err := ch.Join(ctx, slow, "tenant-7"); err != nil {
		t.Fatalf("join slow: %v", err)
	}
	if err := ch.Join(ctx, healthy, "tenant-7"); err != nil {
		t.Fatalf("join healthy: %v", err)
	}
	drainEvent(t, slow) // history
	drainEvent(t, slow) // healthy joined
	drainEvent(t, healthy)

	// Fill the slow consumer's buffer so the next delivery drops.
	slow.Send(Event{Kind: EventRoomMessage})

	if _, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "hello"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	event := drainEvent(t, healthy)
	if event.Kind != EventRoomMessage || event.Message.Body != "hello" {
		t.Fatalf("healthy subscriber should still receive the message, got %+v", event)
	}
}

func TestPublish_EchoPolicy(t *testing.T) {
	ctx := context.Background()

	for _, echo := range []bool{true, false} {
		ch, _ := newTestChannel(echo)
		sender := NewClient(tenant7ID, 8)
		if err := ch.Join(ctx, sender, "tenant-7"); err != nil {
			t.Fatalf("join: %v", err)
		}
		drainEvent(t, sender) // history

		if _, err := ch.Publish(ctx, tenant7ID, sender, "tenant-7", "hello"); err != nil {
			t.Fatalf("publish: %v", err)
		}

		if echo {
			event := drainEvent(t, sender)
			if event.Message.Body != "hello" {
				t.Fatalf("echo enabled: expected own message back, got %+v", event)
			}
		} else {
			requireNoEvent(t, sender)
		}
	}
}

func TestJoin_ForbiddenLeavesRegistryUnchanged(t *testing.T) {
	ch, _ := newTestChannel(true)

	intruder := NewClient(tenant7ID, 8)
	err := ch.Join(context.Background(), intruder, "tenant-9")
	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if ch.Registry().HasSubscribers("tenant-9") {
		t.Fatal("rejected join must not register the client")
	}
}

func TestJoin_DeliversHistory(t *testing.T) {
	ch, _ := newTestChannel(true)
	ctx := context.Background()

	if _, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "first"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "second"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	late := NewClient(landlordID, 8)
	if err := ch.Join(ctx, late, "tenant-7"); err != nil {
		t.Fatalf("join: %v", err)
	}

	event := drainEvent(t, late)
	if event.Kind != EventHistory || len(event.Messages) != 2 {
		t.Fatalf("expected history with 2 messages, got kind=%d len=%d", event.Kind, len(event.Messages))
	}
	if event.Messages[0].Body != "first" || event.Messages[1].Body != "second" {
		t.Fatal("history must be ordered oldest first")
	}
}

func TestHistory_ScopedToIdentity(t *testing.T) {
	ch, _ := newTestChannel(true)
	ctx := context.Background()

	if _, err := ch.Publish(ctx, tenant7ID, nil, "tenant-7", "seven"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := ch.Publish(ctx, tenant9ID, nil, "tenant-9", "nine"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sevenOnly, err := ch.History(ctx, tenant7ID, 0)
	if err != nil {
		t.Fatalf("tenant history: %v", err)
	}
	if len(sevenOnly) != 1 || sevenOnly[0].RoomID != "tenant-7" {
		t.Fatalf("tenant must only see its own room, got %d messages", len(sevenOnly))
	}

	all, err := ch.History(ctx, landlordID, 0)
	if err != nil {
		t.Fatalf("landlord history: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("landlord sees all rooms, got %d messages", len(all))
	}
}

func TestMarkRead(t *testing.T) {
	ch, _ := newTestChannel(true)
	ctx := context.Background()

	persisted, err := ch.Publish(ctx, landlordID, nil, "tenant-7", "rent is due")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	updated, err := ch.MarkRead(ctx, tenant7ID, persisted.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !updated.Read {
		t.Fatal("expected read flag set")
	}

	// Unknown id surfaces not_found.
	_, err = ch.MarkRead(ctx, tenant7ID, 999)
	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}

	// A tenant cannot acknowledge another room's message.
	_, err = ch.MarkRead(ctx, tenant9ID, persisted.ID)
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestPublish_ConcurrentRoomsProgress(t *testing.T) {
	ch, st := newTestChannel(true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = ch.Publish(ctx, tenant7ID, nil, "tenant-7", fmt.Sprintf("seven-%d", i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = ch.Publish(ctx, tenant9ID, nil, "tenant-9", fmt.Sprintf("nine-%d", i))
		}(i)
	}
	wg.Wait()

	if st.count() != 20 {
		t.Fatalf("expected 20 persisted messages, got %d", st.count())
	}
}
