package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"drone_chat/internal/config"
	"drone_chat/internal/domain"
	"drone_chat/internal/middleware"
	"drone_chat/internal/protocol"
	"drone_chat/internal/relay"
	"drone_chat/internal/service"
	apperrors "drone_chat/pkg/errors"
	"drone_chat/pkg/logger"
)

type WebSocketHandler struct {
	relay       *relay.Relay
	authService service.AuthService
	audit       service.AuditService
	cfg         config.ChatConfig
	upgrader    websocket.Upgrader
	log         logger.Logger

	mu    sync.Mutex
	conns map[*wsConnection]struct{}
}

func NewWebSocketHandler(r *relay.Relay, authService service.AuthService, audit service.AuditService, cfg config.ChatConfig, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		relay:       r,
		authService: authService,
		audit:       audit,
		cfg:         cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || middleware.OriginAllowed(cfg.AllowedOrigins, origin)
			},
		},
		log:   log.With("component", "ws"),
		conns: make(map[*wsConnection]struct{}),
	}
}

// Shutdown closes every upgraded socket, including ones that never joined.
// The http server does not track hijacked connections.
func (h *WebSocketHandler) Shutdown() {
	h.mu.Lock()
	conns := make([]*wsConnection, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *WebSocketHandler) track(conn *wsConnection) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *WebSocketHandler) untrack(conn *wsConnection) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// openConnections reports how many upgraded sockets are being served.
func (h *WebSocketHandler) openConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// wsSession is the per-connection state of the read loop.
type wsSession struct {
	conn        *wsConnection
	admin       *domain.Admin
	adminJoined bool
}

// HandleChat upgrades the request and serves the chat protocol until the client goes away.
// An admin access token may be passed as ?token= or in the Authorization header.
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	session := &wsSession{}

	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token != "" {
		admin, err := h.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": "Invalid or expired token"})
			return
		}
		session.admin = admin
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	session.conn = newWSConnection(ws, h.cfg.SendBuffer, h.cfg.PingPeriod, h.log)
	session.conn.Start()
	h.track(session.conn)
	defer h.untrack(session.conn)
	h.serve(ws, session)
}

func (h *WebSocketHandler) serve(ws *websocket.Conn, s *wsSession) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.relay.Leave(s.conn)
		s.conn.Close()
		if s.adminJoined {
			h.recordAdmin(s, domain.EventTypeAdminDisconnected)
		}
	}()

	ws.SetReadLimit(h.cfg.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.conn.log.Debug("Connection dropped", "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.relay.ReplyError(s.conn, fmt.Errorf("%w: malformed frame", apperrors.ErrValidation), "")
			continue
		}
		h.dispatch(ctx, s, env)
	}
}

func (h *WebSocketHandler) dispatch(parent context.Context, s *wsSession, env protocol.Envelope) {
	ctx, cancel := context.WithTimeout(parent, h.cfg.OperationTimeout)
	defer cancel()

	switch env.Event {
	case protocol.EventJoin:
		var p protocol.JoinPayload
		if !h.decode(s, env, &p) {
			return
		}
		if p.User.Type == domain.RoleAdmin {
			if s.admin == nil {
				h.relay.ReplyError(s.conn, fmt.Errorf("%w: admin token required", apperrors.ErrForbidden), "")
				return
			}
			p.User.Name = s.admin.DisplayName
			p.User.Email = s.admin.Email
		}
		if _, err := h.relay.Join(ctx, s.conn, p); err != nil {
			h.relay.ReplyError(s.conn, err, "")
			return
		}
		if p.User.Type == domain.RoleAdmin && !s.adminJoined {
			s.adminJoined = true
			h.recordAdmin(s, domain.EventTypeAdminConnected)
		}

	case protocol.EventSendMessage:
		var p protocol.SendMessagePayload
		if !h.decode(s, env, &p) {
			return
		}
		_ = h.relay.SendMessage(ctx, s.conn, p)

	case protocol.EventMarkRead:
		var p protocol.MarkReadPayload
		if !h.decode(s, env, &p) {
			return
		}
		_ = h.relay.MarkRead(ctx, s.conn, p)

	case protocol.EventTyping, protocol.EventStopTyping:
		var p protocol.TypingPayload
		if !h.decode(s, env, &p) {
			return
		}
		h.relay.Typing(s.conn, env.Event, p)

	default:
		h.relay.ReplyError(s.conn, fmt.Errorf("%w: unknown event %q", apperrors.ErrValidation, env.Event), "")
	}
}

func (h *WebSocketHandler) decode(s *wsSession, env protocol.Envelope, v interface{}) bool {
	if err := env.Decode(v); err != nil {
		h.relay.ReplyError(s.conn, fmt.Errorf("%w: %v", apperrors.ErrValidation, err), "")
		return false
	}
	return true
}

func (h *WebSocketHandler) recordAdmin(s *wsSession, eventType string) {
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.OperationTimeout)
	defer cancel()
	h.audit.Record(ctx, &s.admin.ID, domain.ActorRoleAdmin, nil, eventType, map[string]interface{}{
		"connection_id": s.conn.ID(),
	})
}
