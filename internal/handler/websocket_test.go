package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/chatclient"
	"drone_chat/internal/config"
	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
	"drone_chat/internal/relay"
	"drone_chat/internal/repository"
	"drone_chat/internal/service"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

const adminToken = "valid-admin-token"

type fakeAuth struct {
	admin *domain.Admin
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*service.LoginResponse, error) {
	if email == f.admin.Email && password == "secret-pass" {
		return &service.LoginResponse{Admin: f.admin, AccessToken: adminToken, RefreshToken: "refresh"}, nil
	}
	return nil, apperrors.ErrInvalidCredentials
}

func (f *fakeAuth) RefreshToken(ctx context.Context, refreshToken string) (*service.TokenResponse, error) {
	return nil, apperrors.ErrInvalidToken
}

func (f *fakeAuth) ValidateToken(ctx context.Context, token string) (*domain.Admin, error) {
	if token == adminToken {
		return f.admin, nil
	}
	return nil, apperrors.ErrInvalidToken
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) error { return nil }

func (f *fakeAuth) EnsureBootstrapAdmin(ctx context.Context, cfg config.AdminConfig) error {
	return nil
}

func (f *fakeAuth) PurgeSessions(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeAudit) LogEvent(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{}) error {
	f.Record(ctx, actorAdminID, actorRole, conversationID, eventType, payload)
	return nil
}

func (f *fakeAudit) Record(ctx context.Context, actorAdminID *uuid.UUID, actorRole string, conversationID *string, eventType string, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func (f *fakeAudit) has(eventType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type testServer struct {
	srv   *httptest.Server
	relay *relay.Relay
	ws    *WebSocketHandler
	audit *fakeAudit
	auth  *fakeAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	store := repository.NewMemoryChatRepository(log)
	r := relay.New(store, log, relay.Options{MaxMessageLength: 4000})
	auth := &fakeAuth{admin: &domain.Admin{ID: uuid.New(), Email: "ops@drones.test", DisplayName: "Ops Desk", IsActive: true}}
	audit := &fakeAudit{}

	cfg := config.ChatConfig{
		AllowedOrigins:   []string{"*"},
		SendBuffer:       64,
		MaxMessageLength: 4000,
		OperationTimeout: 5 * time.Second,
		PingPeriod:       30 * time.Second,
		ReadTimeout:      time.Minute,
		MaxFrameBytes:    64 * 1024,
	}

	engine := gin.New()
	ws := NewWebSocketHandler(r, auth, audit, cfg, log)
	health := NewHealthHandler(r)
	authHandler := NewAuthHandler(auth, log)
	engine.GET("/ws/chat", ws.HandleChat)
	engine.GET("/api/v1/chat/status", health.ChatStatus)
	engine.POST("/api/v1/auth/login", authHandler.Login)

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		r.Shutdown()
		srv.Close()
	})
	return &testServer{srv: srv, relay: r, ws: ws, audit: audit, auth: auth}
}

func (s *testServer) dial(t *testing.T, token string) *chatclient.Client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/chat"
	c, err := chatclient.Dial(context.Background(), url, token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// expect waits for the next event called name, skipping others.
func expect(t *testing.T, c *chatclient.Client, name string, v interface{}) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case env, ok := <-c.Events():
			require.True(t, ok, "connection closed while waiting for %s", name)
			if env.Event != name {
				continue
			}
			if v != nil {
				require.NoError(t, json.Unmarshal(env.Data, v))
			}
			return
		case <-timeout:
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func TestWebSocket_VisitorAdminConversation(t *testing.T) {
	s := newTestServer(t)

	admin := s.dial(t, adminToken)
	require.NoError(t, admin.Join("", protocol.User{Name: "spoofed", Type: domain.RoleAdmin}))
	expect(t, admin, protocol.EventJoined, nil)

	visitor := s.dial(t, "")
	visitorUser := protocol.User{Name: "Alice", Email: "alice@example.com", Type: domain.RoleVisitor}
	require.NoError(t, visitor.Join("", visitorUser))

	var joined protocol.JoinedPayload
	expect(t, visitor, protocol.EventJoined, &joined)
	require.True(t, strings.HasPrefix(joined.ConversationID, "visitor-"))
	var history []domain.Message
	expect(t, visitor, protocol.EventConversationHistory, &history)
	assert.Empty(t, history)
	expect(t, visitor, protocol.EventAdminOnline, nil)

	var descriptor protocol.VisitorDescriptor
	expect(t, admin, protocol.EventVisitorConnected, &descriptor)
	assert.Equal(t, joined.ConversationID, descriptor.ConversationID)
	assert.Equal(t, "Alice", descriptor.Name)

	require.NoError(t, admin.Join(descriptor.ConversationID, protocol.User{Type: domain.RoleAdmin}))
	expect(t, admin, protocol.EventConversationHistory, nil)

	require.NoError(t, visitor.SendMessage(protocol.SendMessagePayload{
		TempID:         "t1",
		ConversationID: joined.ConversationID,
		SenderName:     "Alice",
		SenderType:     domain.RoleVisitor,
		Message:        "Hello",
	}))

	var incoming domain.Message
	expect(t, admin, protocol.EventNewMessage, &incoming)
	assert.Equal(t, "Hello", incoming.Body)
	assert.Equal(t, domain.RoleVisitor, incoming.SenderType)
	assert.Equal(t, "t1", incoming.TempID)

	var ack protocol.MessageDeliveredPayload
	expect(t, visitor, protocol.EventMessageDelivered, &ack)
	assert.Equal(t, "t1", ack.TempID)
	assert.Equal(t, incoming.ID, ack.MessageID)
	assert.Equal(t, domain.StatusDelivered, ack.Status)

	require.NoError(t, admin.SendMessage(protocol.SendMessagePayload{
		TempID:         "a1",
		ConversationID: joined.ConversationID,
		Message:        "Hi Alice, how can we help?",
	}))
	var reply domain.Message
	expect(t, visitor, protocol.EventNewMessage, &reply)
	assert.Equal(t, "Ops Desk", reply.SenderName)
	assert.Equal(t, domain.RoleAdmin, reply.SenderType)

	require.NoError(t, admin.MarkRead(joined.ConversationID, []string{incoming.ID}))
	var read protocol.MessagesReadPayload
	expect(t, visitor, protocol.EventMessagesRead, &read)
	assert.Equal(t, []string{incoming.ID}, read.MessageIDs)

	require.NoError(t, visitor.Typing(joined.ConversationID, visitorUser, true))
	var typing protocol.TypingPayload
	expect(t, admin, protocol.EventTyping, &typing)
	assert.Equal(t, "Alice", typing.User.Name)

	require.NoError(t, visitor.Close())
	var gone protocol.VisitorDisconnectedPayload
	expect(t, admin, protocol.EventVisitorDisconnected, &gone)
	assert.Equal(t, joined.ConversationID, gone.ConversationID)

	assert.True(t, s.audit.has(domain.EventTypeAdminConnected))
}

func TestWebSocket_AdminJoinRequiresToken(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	require.NoError(t, c.Join("", protocol.User{Name: "Mallory", Type: domain.RoleAdmin}))
	var payload protocol.ErrorPayload
	expect(t, c, protocol.EventError, &payload)
	assert.Equal(t, "forbidden", payload.Code)

	online, _, _ := s.relay.Status()
	assert.False(t, online)
}

func TestWebSocket_InvalidTokenRejected(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/chat?token=bogus"

	_, err := chatclient.Dial(context.Background(), url, "")
	require.Error(t, err)
}

func TestWebSocket_ProtocolErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	require.NoError(t, c.Emit("launch-drone", map[string]string{"id": "1"}))
	var payload protocol.ErrorPayload
	expect(t, c, protocol.EventError, &payload)
	assert.Equal(t, "validation", payload.Code)

	require.NoError(t, c.Join("v1", protocol.User{Type: domain.RoleVisitor}))
	expect(t, c, protocol.EventError, &payload)
	assert.Equal(t, "validation", payload.Code)

	require.NoError(t, c.SendMessage(protocol.SendMessagePayload{TempID: "t1", ConversationID: "v1", Message: "hi"}))
	expect(t, c, protocol.EventError, &payload)
	assert.Equal(t, "not_joined", payload.Code)
	assert.Equal(t, "t1", payload.TempID)
}

func TestChatStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	status := func() map[string]interface{} {
		resp, err := http.Get(s.srv.URL + "/api/v1/chat/status")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	assert.Equal(t, false, status()["adminOnline"])

	admin := s.dial(t, adminToken)
	require.NoError(t, admin.Join("", protocol.User{Type: domain.RoleAdmin}))
	expect(t, admin, protocol.EventJoined, nil)

	body := status()
	assert.Equal(t, true, body["adminOnline"])
	assert.Equal(t, float64(1), body["admins"])
}

func TestAuthHandler_Login(t *testing.T) {
	s := newTestServer(t)

	post := func(body string) int {
		resp, err := http.Post(s.srv.URL+"/api/v1/auth/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post(`{"email":"ops@drones.test","password":"secret-pass"}`))
	assert.Equal(t, http.StatusUnauthorized, post(`{"email":"ops@drones.test","password":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, post(`{"email":"not-an-email"}`))
}

func TestWebSocket_ShutdownClosesUnjoinedSockets(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	require.Eventually(t, func() bool { return s.ws.openConnections() == 1 }, 3*time.Second, 10*time.Millisecond)

	s.relay.Shutdown()
	s.ws.Shutdown()

	select {
	case _, ok := <-c.Events():
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("socket still open after shutdown")
	}
	require.Eventually(t, func() bool { return s.ws.openConnections() == 0 }, 3*time.Second, 10*time.Millisecond)
}
