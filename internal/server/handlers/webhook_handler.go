package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/domain/models"
	service "github.com/mamadbah2/relaybot/internal/service/telegram"
)

// SecretTokenHeader carries the secret configured through setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// HealthInfo exposes the counters reported by the health endpoint.
type HealthInfo interface {
	Sessions() int
	Targets() int
}

// WebhookHandler handles inbound and outbound Telegram HTTP events.
type WebhookHandler struct {
	svc    service.MessagingService
	health HealthInfo
	logger *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter. health may be nil.
func NewWebhookHandler(svc service.MessagingService, health HealthInfo, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{svc: svc, health: health, logger: logger}
}

// Receive ingests webhook POST callbacks from Telegram.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if err := h.svc.VerifyWebhookSecret(c.GetHeader(SecretTokenHeader)); err != nil {
		h.logger.Warn("webhook secret mismatch", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
		return
	}

	var update models.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.svc.HandleUpdate(c.Request.Context(), update); err != nil {
		if errors.Is(err, service.ErrServiceClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		}
		h.logger.Error("failed processing update", zap.Int64("update_id", update.UpdateID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process update"})
		return
	}

	c.Status(http.StatusOK)
}

// SendMessage allows operators to push a message to a chat.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.Int64("chat_id", req.ChatID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}

// Health reports liveness with the live session and target counts.
func (h *WebhookHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.health != nil {
		body["sessions"] = h.health.Sessions()
		body["targets"] = h.health.Targets()
	}
	c.JSON(http.StatusOK, body)
}
