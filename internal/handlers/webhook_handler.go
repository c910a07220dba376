package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/core/domain"
)

// WebhookReceiver validates and dispatches Braintree webhooks.
type WebhookReceiver interface {
	Receive(ctx context.Context, signature, payload string) (*domain.WebhookResult, error)
}

// WebhookHandler handles Braintree webhook deliveries.
type WebhookHandler struct {
	webhooks WebhookReceiver
	logger   *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(webhooks WebhookReceiver, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// HandleWebhook handles POST /webhooks/braintree
// Braintree posts bt_signature and bt_payload as form fields and only looks
// at the status code; the body is for humans.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	signature := c.PostForm("bt_signature")
	payload := c.PostForm("bt_payload")

	result, err := h.webhooks.Receive(c.Request.Context(), signature, payload)
	if err != nil {
		h.logger.Error("Braintree webhook failed", zap.Error(err))
		if errors.Is(err, domain.ErrWebhookValidationFailed) {
			c.String(http.StatusInternalServerError, "Invalid Braintree event.")
			return
		}
		c.String(http.StatusInternalServerError, "Webhook processing error: %s", domain.Message(err))
		return
	}

	c.String(http.StatusOK, result.Message)
}
