package http

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/store/sqlite"
)

// flakyUserStore wraps a store and fails identity lookups on demand.
type flakyUserStore struct {
	store.Store
	down atomic.Bool
}

var errStoreDown = errors.New("store down")

func (f *flakyUserStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.GetUserByID(ctx, id)
}

func TestAuthMiddlewareDistinguishesStoreOutage(t *testing.T) {
	memStore, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = memStore.Close() })

	flaky := &flakyUserStore{Store: memStore}
	env := newTestEnv(t, flaky)
	tok, _ := env.registerUser(t, "alice", "alice@example.com")

	if status := env.getJSON(t, "/api/me", tok, nil); status != 200 {
		t.Fatalf("expected 200 with healthy store, got %d", status)
	}

	// A store outage is an internal fault, not a credential problem.
	flaky.down.Store(true)
	var resp ErrorResponse
	if status := env.getJSON(t, "/api/me", tok, &resp); status != 500 {
		t.Fatalf("expected 500 during store outage, got %d", status)
	}
	if resp.Error == "unauthenticated" {
		t.Fatalf("store outage reported as a credential problem")
	}

	// A bad credential stays a 401 once the store recovers.
	flaky.down.Store(false)
	if status := env.getJSON(t, "/api/me", "not-a-token", nil); status != 401 {
		t.Fatalf("expected 401 for invalid credential, got %d", status)
	}
}
