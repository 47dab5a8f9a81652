package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sportsreport-bot/internal/models"
)

type MessageStore interface {
	Messages(ctx context.Context, waID string, limit int) ([]models.Message, error)
	LogMessage(ctx context.Context, m *models.Message) error
}

type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// DashboardHandler lets operators read conversations and answer by hand.
type DashboardHandler struct {
	messages MessageStore
	sender   Sender
	ping     func(context.Context) error
	logger   *slog.Logger
}

func NewDashboardHandler(messages MessageStore, sender Sender, ping func(context.Context) error, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{messages: messages, sender: sender, ping: ping, logger: logger}
}

func (h *DashboardHandler) GetMessages(c *gin.Context) {
	waID := c.Query("wa_id")
	if waID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wa_id is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	msgs, err := h.messages.Messages(c.Request.Context(), waID, limit)
	if err != nil {
		h.logger.Error("list messages", "wa_id", waID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

type SendRequest struct {
	To      string `json:"to" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *DashboardHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.sender.SendText(ctx, req.To, req.Content); err != nil {
		h.logger.Error("operator send", "to", req.To, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to send message"})
		return
	}
	m := &models.Message{WaID: req.To, Sender: "operator", Content: req.Content, Type: "text", Status: "sent"}
	if err := h.messages.LogMessage(ctx, m); err != nil {
		h.logger.Warn("log operator message", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "message sent"})
}

// Health reports whether the database answers.
func (h *DashboardHandler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
