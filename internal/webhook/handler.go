// Package webhook receives WhatsApp Cloud API callbacks and answers them
// through the conversation service.
package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sportsreport-bot/internal/config"
	"sportsreport-bot/internal/conversation"
	"sportsreport-bot/internal/models"
	payload "sportsreport-bot/pkg/models"
)

type Conversation interface {
	HandleMessage(ctx context.Context, in conversation.Inbound) (conversation.Outbound, error)
}

type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

type MessageLog interface {
	LogMessage(ctx context.Context, m *models.Message) error
}

type Handler struct {
	verifyToken  string
	conversation Conversation
	sender       Sender
	messages     MessageLog
	logger       *slog.Logger
}

func NewHandler(cfg *config.Config, conv Conversation, sender Sender, messages MessageLog, logger *slog.Logger) *Handler {
	return &Handler{
		verifyToken:  cfg.VerifyToken,
		conversation: conv,
		sender:       sender,
		messages:     messages,
		logger:       logger,
	}
}

// VerifyWebhook answers Meta's subscription handshake.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || h.verifyToken == "" || token != h.verifyToken {
		c.Status(http.StatusForbidden)
		return
	}
	h.logger.Info("webhook verified")
	c.String(http.StatusOK, challenge)
}

// HandleMessage processes every user message in the callback. A storage
// failure answers 500 so Meta redelivers the batch; already handled
// messages are skipped on redelivery.
func (h *Handler) HandleMessage(c *gin.Context) {
	var p payload.WebhookPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		h.logger.Warn("bad webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	ctx := c.Request.Context()
	failed := false
	for _, msg := range p.Messages() {
		body := msg.Body()
		if body == "" {
			h.logger.Info("ignoring unsupported message", "from", msg.From, "type", msg.Type)
			continue
		}
		out, err := h.conversation.HandleMessage(ctx, conversation.Inbound{
			SenderID:   msg.From,
			Text:       body,
			ReceivedAt: msg.Time(),
			MessageID:  msg.ID,
		})
		if err != nil {
			failed = true
			if !errors.Is(err, conversation.ErrStorage) {
				h.logger.Error("handle message", "from", msg.From, "error", err)
			}
		}
		if out.Duplicate {
			continue
		}
		// A failed message comes back on redelivery and is logged then.
		if err == nil {
			h.logMessage(ctx, msg.From, "user", body, msg.Type, "received")
		}
		if out.Text == "" {
			continue
		}
		if _, err := h.sender.SendText(ctx, out.RecipientID, out.Text); err != nil {
			h.logger.Error("send reply", "to", out.RecipientID, "error", err)
			continue
		}
		h.logMessage(ctx, out.RecipientID, "bot", out.Text, "text", "sent")
	}

	if failed {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message could not be processed"})
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) logMessage(ctx context.Context, waID, sender, content, typ, status string) {
	if h.messages == nil {
		return
	}
	m := &models.Message{WaID: waID, Sender: sender, Content: content, Type: typ, Status: status}
	if err := h.messages.LogMessage(ctx, m); err != nil {
		h.logger.Warn("log message", "error", err)
	}
}
