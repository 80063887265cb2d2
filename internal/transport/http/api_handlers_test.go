package http

import (
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	var reg AuthResponse
	status := env.postJSON(t, "/api/register", "", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}, &reg)
	if status != 201 || reg.Token == "" || reg.User.Username != "alice" {
		t.Fatalf("unexpected register response: status=%d resp=%+v", status, reg)
	}

	// Duplicate registration conflicts, creating nothing.
	status = env.postJSON(t, "/api/register", "", RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}, nil)
	if status != 409 {
		t.Fatalf("expected 409 for duplicate, got %d", status)
	}

	var login AuthResponse
	status = env.postJSON(t, "/api/login", "", LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, &login)
	if status != 200 || login.Token == "" || !login.User.IsOnline {
		t.Fatalf("unexpected login response: status=%d resp=%+v", status, login)
	}

	status = env.postJSON(t, "/api/login", "", LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	}, nil)
	if status != 401 {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}
}

func TestAPIRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	tok, _ := env.registerUser(t, "alice", "alice@example.com")

	// No credential: explicit unauthenticated failure, not anonymous access.
	if status := env.getJSON(t, "/api/me", "", nil); status != 401 {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status := env.getJSON(t, "/api/me", "garbage", nil); status != 401 {
		t.Fatalf("expected 401 with invalid token, got %d", status)
	}

	var me UserResponse
	if status := env.getJSON(t, "/api/me", tok, &me); status != 200 || me.Username != "alice" {
		t.Fatalf("expected 200 with identity, got %d %+v", status, me)
	}
}

func TestListUsersExcludesCaller(t *testing.T) {
	env := newTestEnv(t, nil)
	tok, _ := env.registerUser(t, "alice", "alice@example.com")
	env.registerUser(t, "bob", "bob@example.com")

	var users []UserResponse
	if status := env.getJSON(t, "/api/users", tok, &users); status != 200 {
		t.Fatalf("list users: status %d", status)
	}
	if len(users) != 1 || users[0].Username != "bob" {
		t.Fatalf("expected only bob, got %+v", users)
	}
}

func TestLogoutFlipsPresence(t *testing.T) {
	env := newTestEnv(t, nil)
	env.registerUser(t, "alice", "alice@example.com")

	var login AuthResponse
	if status := env.postJSON(t, "/api/login", "", LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, &login); status != 200 {
		t.Fatalf("login: status %d", status)
	}

	if status := env.postJSON(t, "/api/logout", login.Token, nil, nil); status != 204 {
		t.Fatalf("logout: status %d", status)
	}

	var me UserResponse
	if status := env.getJSON(t, "/api/me", login.Token, &me); status != 200 {
		t.Fatalf("me after logout: status %d", status)
	}
	// The token still resolves; only presence changed.
	if me.IsOnline {
		t.Fatalf("expected offline user after logout, got %+v", me)
	}
}
