package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"drone_chat/internal/service"
	"drone_chat/pkg/logger"
)

// ChatHandler serves the admin inbox.
type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversations, err := h.chatService.ListConversations(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.Error("Failed to list conversations", "error", err)
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chatService.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *ChatHandler) ExportConversations(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.chatService.ExportInbox(c.Request.Context(), &buf); err != nil {
		h.log.Error("Failed to export conversations", "error", err)
		_ = c.Error(err)
		return
	}

	filename := fmt.Sprintf("conversations_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
