package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID             int64                  `json:"id"`
	EventTime      time.Time              `json:"event_time"`
	ActorAdminID   *uuid.UUID             `json:"actor_admin_id,omitempty"`
	ActorRole      string                 `json:"actor_role"`
	ConversationID *string                `json:"conversation_id,omitempty"`
	EventType      string                 `json:"event_type"`
	Payload        map[string]interface{} `json:"payload"`
}

const (
	ActorRoleAdmin  = "admin"
	ActorRoleSystem = "system"
)

const (
	EventTypeAdminLogin        = "ADMIN_LOGIN"
	EventTypeAdminLogout       = "ADMIN_LOGOUT"
	EventTypeAdminConnected    = "ADMIN_CONNECTED"
	EventTypeAdminDisconnected = "ADMIN_DISCONNECTED"
	EventTypeAdminBootstrapped = "ADMIN_BOOTSTRAPPED"
)
