package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/internal/platform/logger"
)

// Handlers groups the route handlers.
type Handlers struct {
	Donations *DonationHandler
	Webhooks  *WebhookHandler
	Admin     *AdminHandler
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(h Handlers, ginMode, serviceAPIKey string, log *zap.Logger) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(logger.Middleware(log))
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())

	// Health check (public)
	router.GET("/health", h.Admin.Health)

	v1 := router.Group("/api/v1")
	{
		// Payment widget endpoints (public, called from donation forms)
		widget := v1.Group("/braintree/client-config")
		{
			widget.GET("", h.Donations.ClientConfig)
			widget.POST("/total", h.Donations.TotalChanged)
		}

		// Host endpoints (requires Bearer auth)
		private := v1.Group("")
		private.Use(ServiceAuthMiddleware(serviceAPIKey))
		{
			private.POST("/donations/process", h.Donations.ProcessDonation)
			private.POST("/donations/:id/refund", h.Admin.Refund)
			private.POST("/subscriptions/:id/cancel", h.Admin.CancelSubscription)
			private.GET("/braintree/plans", h.Admin.ListPlans)
			private.GET("/braintree/links", h.Admin.Links)
		}
	}

	// Webhook endpoint (public, validates bt_signature)
	router.POST("/webhooks/braintree", h.Webhooks.HandleWebhook)

	return router
}
