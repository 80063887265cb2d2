package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/akarpov/murmur-server/internal/auth"
	"github.com/akarpov/murmur-server/internal/bus"
	"github.com/akarpov/murmur-server/internal/config"
	"github.com/akarpov/murmur-server/internal/core"
	"github.com/akarpov/murmur-server/internal/identity"
	"github.com/akarpov/murmur-server/internal/notify"
	"github.com/akarpov/murmur-server/internal/proto"
	"github.com/akarpov/murmur-server/internal/store"
	"github.com/akarpov/murmur-server/internal/store/sqlite"
	"github.com/akarpov/murmur-server/internal/token"
)

// testEnv bundles the wired components a transport test needs.
type testEnv struct {
	ts      *httptest.Server
	store   store.Store
	bus     *bus.Bus
	manager *core.Manager
}

// newTestEnv wires a full server over the given store. A nil store gets a
// fresh in-memory sqlite.
func newTestEnv(t *testing.T, st store.Store) *testEnv {
	t.Helper()

	if st == nil {
		memStore, err := sqlite.New(":memory:")
		if err != nil {
			t.Fatalf("failed to create test store: %v", err)
		}
		t.Cleanup(func() { _ = memStore.Close() })
		st = memStore
	}

	logger := zerolog.New(nil)
	b := bus.New(8)
	tokens := token.NewService([]byte("test-secret-change-me"), 24*time.Hour)
	resolver := identity.NewResolver(tokens, st)
	notifier := notify.NewDispatcher(b, &logger)
	manager := core.NewManager(b, &logger)
	authService := auth.NewService(st, tokens, notifier)

	cfg := &config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		JWTSecret:         "test-secret-change-me",
		TokenTTL:          24 * time.Hour,
		SubscriberBuffer:  8,
	}

	server := NewServer(manager, resolver, authService, notifier, st, cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, bus: b, manager: manager}
}

// postJSON sends a JSON request and decodes the JSON response into out.
func (e *testEnv) postJSON(t *testing.T, path, bearer string, body, out any) int {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req, err := stdhttp.NewRequest("POST", e.ts.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

// getJSON sends a GET request and decodes the JSON response into out.
func (e *testEnv) getJSON(t *testing.T, path, bearer string, out any) int {
	t.Helper()

	req, err := stdhttp.NewRequest("GET", e.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

// registerUser registers a user over the API and returns token and id.
func (e *testEnv) registerUser(t *testing.T, username, email string) (string, int64) {
	t.Helper()

	var resp AuthResponse
	status := e.postJSON(t, "/api/register", "", RegisterRequest{
		Username: username,
		Email:    email,
		Password: "password123",
	}, &resp)
	if status != 201 {
		t.Fatalf("register %s: unexpected status %d", username, status)
	}
	return resp.Token, resp.User.ID
}

// dialWS opens a websocket session, optionally with a handshake token.
func (e *testEnv) dialWS(t *testing.T, ctx context.Context, bearer string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if bearer != "" {
		wsURL += "?token=" + bearer
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// writeInbound sends one raw inbound frame.
func writeInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, data []byte) {
	t.Helper()

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: data}); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

// subscribeWS subscribes the connection to a topic and consumes the ack.
func subscribeWS(t *testing.T, ctx context.Context, conn *websocket.Conn, topic string) {
	t.Helper()

	payload, _ := json.Marshal(proto.SubscribeData{Topic: topic})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSubscribe, Data: payload}); err != nil {
		t.Fatalf("send subscribe: %v", err)
	}

	var outbound proto.Outbound
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		t.Fatalf("read subscribe ack: %v", err)
	}
	if outbound.Type != proto.OutboundTypeSubscribed || outbound.Topic != topic {
		t.Fatalf("unexpected subscribe reply: %+v", outbound)
	}
}

// readOutbound reads one outbound frame, re-decoding the data field into out.
func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn, out any) proto.Outbound {
	t.Helper()

	var outbound struct {
		Type  string          `json:"type"`
		Event string          `json:"event,omitempty"`
		Topic string          `json:"topic,omitempty"`
		Data  json.RawMessage `json:"data,omitempty"`
		Error *proto.Error    `json:"error,omitempty"`
	}
	if err := wsjson.Read(ctx, conn, &outbound); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	if out != nil && len(outbound.Data) > 0 {
		if err := json.Unmarshal(outbound.Data, out); err != nil {
			t.Fatalf("unmarshal outbound data: %v", err)
		}
	}
	return proto.Outbound{
		Type:  outbound.Type,
		Event: outbound.Event,
		Topic: outbound.Topic,
		Error: outbound.Error,
	}
}
