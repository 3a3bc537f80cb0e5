package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/rentwire/rentwire-server/internal/auth"
	"github.com/rentwire/rentwire-server/internal/config"
	"github.com/rentwire/rentwire-server/internal/core"
	"github.com/rentwire/rentwire-server/internal/proto"
	"github.com/rentwire/rentwire-server/internal/store"
	"github.com/rentwire/rentwire-server/internal/store/sqlite"
)

type testEnv struct {
	ts      *httptest.Server
	channel *core.Channel
	jwtCfg  *auth.JWTConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test-api",
		TTL:      time.Hour,
	}

	logger := zerolog.New(nil)
	cfg := config.Default()
	authService := auth.NewService(st, st, jwtCfg)
	channel := core.NewChannel(core.NewRegistry(), st, cfg.Channel.EchoSender, &logger)

	srv := NewServer(&cfg, &logger, authService, channel, st)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, channel: channel, jwtCfg: jwtCfg}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any) *stdhttp.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *stdhttp.Response) T {
	t.Helper()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func (e *testEnv) registerLandlord(t *testing.T) string {
	t.Helper()

	resp := e.doJSON(t, stdhttp.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123", Role: "landlord",
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("register landlord: status %d", resp.StatusCode)
	}
	return decodeJSON[AuthResponse](t, resp).Token
}

func (e *testEnv) createTenant(t *testing.T, landlordToken, name string) TenantResponse {
	t.Helper()

	resp := e.doJSON(t, stdhttp.MethodPost, "/api/tenants", landlordToken, TenantRequest{
		Name: name, Email: name + "@example.com", Phone: "555-0100", Property: "12 Main St",
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("create tenant: status %d", resp.StatusCode)
	}
	return decodeJSON[TenantResponse](t, resp)
}

func (e *testEnv) registerTenantUser(t *testing.T, tenantID int64, email string) string {
	t.Helper()

	resp := e.doJSON(t, stdhttp.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name: "Tenant", Email: email, Password: "password123", Role: "tenant", TenantID: tenantID,
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("register tenant user: status %d", resp.StatusCode)
	}
	return decodeJSON[AuthResponse](t, resp).Token
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.doJSON(t, stdhttp.MethodGet, "/api/messages", "", nil)
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeJSON[ErrorResponse](t, resp); body.Code != "token_missing" {
		t.Fatalf("expected token_missing, got %q", body.Code)
	}
}

func TestAuthMiddleware_MalformedScheme(t *testing.T) {
	env := newTestEnv(t)

	req, _ := stdhttp.NewRequest(stdhttp.MethodGet, env.ts.URL+"/api/messages", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := env.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeJSON[ErrorResponse](t, resp); body.Code != "token_malformed" {
		t.Fatalf("expected token_malformed, got %q", body.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	expiredCfg := *env.jwtCfg
	expiredCfg.TTL = -time.Minute
	token, err := auth.GenerateToken(&expiredCfg, &store.User{ID: 1, Email: "l@example.com", Role: store.RoleLandlord})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	resp := env.doJSON(t, stdhttp.MethodGet, "/api/messages", token, nil)
	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body := decodeJSON[ErrorResponse](t, resp); body.Code != "token_expired" {
		t.Fatalf("expected token_expired, got %q", body.Code)
	}
}

func TestRequireRole_TenantCannotManageRecords(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.registerLandlord(t)
	tenant := env.createTenant(t, landlord, "maria")
	tenantToken := env.registerTenantUser(t, tenant.ID, "maria.user@example.com")

	resp := env.doJSON(t, stdhttp.MethodPost, "/api/tenants", tenantToken, TenantRequest{
		Name: "intruder", Email: "x@example.com", Phone: "555", Property: "9 Elm St",
	})
	if resp.StatusCode != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 for tenant mutation, got %d", resp.StatusCode)
	}
}

func TestMessages_SendListAndScope(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.registerLandlord(t)
	maria := env.createTenant(t, landlord, "maria")
	bob := env.createTenant(t, landlord, "bob")
	mariaToken := env.registerTenantUser(t, maria.ID, "maria.user@example.com")

	// Landlord may address any tenant room without joining first.
	resp := env.doJSON(t, stdhttp.MethodPost, "/api/messages", landlord, SendMessageRequest{
		Room: maria.RoomID, Content: "rent receipt attached",
	})
	if resp.StatusCode != stdhttp.StatusCreated {
		t.Fatalf("send message: status %d", resp.StatusCode)
	}
	sent := decodeJSON[proto.EventMessage](t, resp)
	if sent.ID == 0 || sent.Room != maria.RoomID {
		t.Fatalf("unexpected persisted message: %+v", sent)
	}

	// A tenant cannot post into another tenant's room.
	resp = env.doJSON(t, stdhttp.MethodPost, "/api/messages", mariaToken, SendMessageRequest{
		Room: bob.RoomID, Content: "hello bob",
	})
	if resp.StatusCode != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 for cross-room send, got %d", resp.StatusCode)
	}

	// The tenant's listing is scoped to its own room.
	resp = env.doJSON(t, stdhttp.MethodGet, "/api/messages", mariaToken, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("list messages: status %d", resp.StatusCode)
	}
	msgs := decodeJSON[[]proto.EventMessage](t, resp)
	if len(msgs) != 1 || msgs[0].ID != sent.ID {
		t.Fatalf("expected the single room message, got %d messages", len(msgs))
	}

	// since_id cursor excludes messages at or before the cursor.
	resp = env.doJSON(t, stdhttp.MethodGet, fmt.Sprintf("/api/messages?since_id=%d", sent.ID), mariaToken, nil)
	if got := decodeJSON[[]proto.EventMessage](t, resp); len(got) != 0 {
		t.Fatalf("expected empty page past the cursor, got %d messages", len(got))
	}

	// Marking read flips the flag.
	resp = env.doJSON(t, stdhttp.MethodPatch, fmt.Sprintf("/api/messages/%d/read", sent.ID), mariaToken, nil)
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("mark read: status %d", resp.StatusCode)
	}
	if updated := decodeJSON[proto.EventMessage](t, resp); !updated.Read {
		t.Fatal("expected read flag set")
	}
}

func TestWS_RejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/ws?token=garbage")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 before upgrade, got %d", resp.StatusCode)
	}
	if got := env.channel.Registry().RoomCount(); got != 0 {
		t.Fatalf("rejected connection must not touch the registry, %d rooms exist", got)
	}
}

type wsOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readOutbound(ctx context.Context, t *testing.T, conn *websocket.Conn) wsOutbound {
	t.Helper()

	var out wsOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func writeInbound(ctx context.Context, t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal inbound data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("write inbound: %v", err)
	}
}

func TestWS_JoinAndPublish(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.registerLandlord(t)
	tenant := env.createTenant(t, landlord, "maria")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Browsers cannot set headers on upgrade, so the token rides the query.
	conn, _, err := websocket.Dial(ctx, env.ts.URL+"/ws?token="+landlord, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeInbound(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{Room: tenant.RoomID})

	// Join delivers room history to the joining connection.
	out := readOutbound(ctx, t, conn)
	if out.Event != "history" {
		t.Fatalf("expected history on join, got %q", out.Event)
	}
	var hist proto.EventHistory
	if err := json.Unmarshal(out.Data, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if hist.Room != tenant.RoomID || len(hist.Messages) != 0 {
		t.Fatalf("expected empty history for %q, got %+v", tenant.RoomID, hist)
	}

	// With sender echo enabled the publisher sees its own message back.
	writeInbound(ctx, t, conn, proto.InboundTypeMsg, proto.MsgData{Room: tenant.RoomID, Text: "inspection friday"})

	out = readOutbound(ctx, t, conn)
	if out.Event != "message" {
		t.Fatalf("expected message event, got %q", out.Event)
	}
	var msg proto.EventMessage
	if err := json.Unmarshal(out.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.ID == 0 || msg.Text != "inspection friday" || msg.Room != tenant.RoomID {
		t.Fatalf("unexpected delivered message: %+v", msg)
	}
}

func TestWS_DomainErrorKeepsConnectionAlive(t *testing.T) {
	env := newTestEnv(t)
	landlord := env.registerLandlord(t)
	maria := env.createTenant(t, landlord, "maria")
	bob := env.createTenant(t, landlord, "bob")
	mariaToken := env.registerTenantUser(t, maria.ID, "maria.user@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.ts.URL+"/ws?token="+mariaToken, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Joining a foreign room is rejected with an error frame, not a close.
	writeInbound(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{Room: bob.RoomID})

	out := readOutbound(ctx, t, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeForbidden {
		t.Fatalf("expected forbidden error frame, got %+v", out)
	}

	// The connection still works: joining the own room succeeds.
	writeInbound(ctx, t, conn, proto.InboundTypeJoin, proto.JoinData{Room: maria.RoomID})
	if out = readOutbound(ctx, t, conn); out.Event != "history" {
		t.Fatalf("expected history after recovery, got %+v", out)
	}
}
