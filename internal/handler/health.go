package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drone_chat/internal/relay"
)

type HealthHandler struct {
	relay *relay.Relay
}

func NewHealthHandler(r *relay.Relay) *HealthHandler {
	return &HealthHandler{relay: r}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "drone-chat",
	})
}

// ChatStatus tells the site widget whether an operator is online before it opens a socket.
func (h *HealthHandler) ChatStatus(c *gin.Context) {
	online, admins, _ := h.relay.Status()
	c.JSON(http.StatusOK, gin.H{
		"adminOnline": online,
		"admins":      admins,
	})
}
