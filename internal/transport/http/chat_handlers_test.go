package http

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/store/sqlite"
)

func TestSendAndListChats(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceTok, _ := env.registerUser(t, "alice", "alice@example.com")
	bobTok, bobID := env.registerUser(t, "bob", "bob@example.com")

	var sent MessageResponse
	status := env.postJSON(t, "/api/messages", aliceTok, SendMessageRequest{
		RecipientID: bobID,
		Body:        "hello bob",
	}, &sent)
	if status != 201 || sent.Body != "hello bob" || sent.IsRead {
		t.Fatalf("unexpected send response: status=%d resp=%+v", status, sent)
	}

	status = env.postJSON(t, "/api/messages", bobTok, SendMessageRequest{
		RecipientID: sent.SenderID,
		Body:        "hi alice",
	}, nil)
	if status != 201 {
		t.Fatalf("reply: status %d", status)
	}

	var chats []MessageResponse
	if status := env.getJSON(t, "/api/chats?with="+itoa(bobID), aliceTok, &chats); status != 200 {
		t.Fatalf("list chats: status %d", status)
	}
	if len(chats) != 2 || chats[0].Body != "hello bob" || chats[1].Body != "hi alice" {
		t.Fatalf("unexpected conversation: %+v", chats)
	}
}

func TestSendToUnknownRecipient(t *testing.T) {
	env := newTestEnv(t, nil)
	tok, _ := env.registerUser(t, "alice", "alice@example.com")

	status := env.postJSON(t, "/api/messages", tok, SendMessageRequest{
		RecipientID: 9999,
		Body:        "into the void",
	}, nil)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestMarkReadRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceTok, _ := env.registerUser(t, "alice", "alice@example.com")
	bobTok, bobID := env.registerUser(t, "bob", "bob@example.com")

	var sent MessageResponse
	if status := env.postJSON(t, "/api/messages", aliceTok, SendMessageRequest{
		RecipientID: bobID,
		Body:        "read me",
	}, &sent); status != 201 {
		t.Fatalf("send: status %d", status)
	}

	var read MessageResponse
	if status := env.postJSON(t, "/api/messages/"+itoa(sent.ID)+"/read", bobTok, nil, &read); status != 200 {
		t.Fatalf("mark read: status %d", status)
	}
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("expected read message with timestamp, got %+v", read)
	}

	var again MessageResponse
	if status := env.postJSON(t, "/api/messages/"+itoa(sent.ID)+"/read", bobTok, nil, &again); status != 200 {
		t.Fatalf("mark read twice: status %d", status)
	}
	if !again.IsRead || again.ReadAt == nil || *again.ReadAt != *read.ReadAt {
		t.Fatalf("second mark changed the record: %+v vs %+v", again, read)
	}

	if status := env.postJSON(t, "/api/messages/9999/read", bobTok, nil, nil); status != 404 {
		t.Fatalf("expected 404 for unknown message, got %d", status)
	}
}

// failingMessageStore wraps a store and fails every message insert.
type failingMessageStore struct {
	store.Store
}

var errWriteRefused = errors.New("write refused")

func (f *failingMessageStore) CreateMessage(context.Context, int64, int64, string) (*store.Message, error) {
	return nil, errWriteRefused
}

func TestFailedWritePublishesNoEvent(t *testing.T) {
	memStore, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = memStore.Close() })

	env := newTestEnv(t, &failingMessageStore{Store: memStore})
	aliceTok, _ := env.registerUser(t, "alice", "alice@example.com")
	_, bobID := env.registerUser(t, "bob", "bob@example.com")

	sub := env.bus.Subscribe(bus.TopicMessage, bus.Unfiltered())
	defer sub.Close()

	status := env.postJSON(t, "/api/messages", aliceTok, SendMessageRequest{
		RecipientID: bobID,
		Body:        "never delivered",
	}, nil)
	if status != 500 {
		t.Fatalf("expected 500 for failed write, got %d", status)
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("failed write published an event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
