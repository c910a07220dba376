package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/service"
)

// AdminOperations are the operator actions exposed over HTTP.
type AdminOperations interface {
	Refund(ctx context.Context, donationID int64) (*domain.Outcome, error)
	CancelSubscription(ctx context.Context, subscriptionID int64) error
	ListPlans(ctx context.Context, env domain.Environment, period domain.Period) ([]domain.Plan, error)
	Links(ctx context.Context, env domain.Environment) (*service.DashboardLinks, error)
	EndpointStatus(ctx context.Context) (string, error)
}

// AdminHandler handles refunds, cancellations, plan listing and health.
type AdminHandler struct {
	admin AdminOperations
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin AdminOperations) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// Refund handles POST /api/v1/donations/:id/refund
func (h *AdminHandler) Refund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	outcome, err := h.admin.Refund(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"donation_id":    id,
		"transaction_id": outcome.TransactionID,
	})
}

// CancelSubscription handles POST /api/v1/subscriptions/:id/cancel
func (h *AdminHandler) CancelSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.admin.CancelSubscription(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "subscription_id": id})
}

// ListPlans handles GET /api/v1/braintree/plans?environment=test&period=month
func (h *AdminHandler) ListPlans(c *gin.Context) {
	env, ok := queryEnvironment(c)
	if !ok {
		return
	}

	period := domain.Period(c.Query("period"))
	if period != "" && period.BillingFrequency() == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "unknown period: " + string(period),
			ErrorCode: "VALIDATION_ERROR",
		})
		return
	}

	plans, err := h.admin.ListPlans(c.Request.Context(), env, period)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"environment": env, "plans": plans})
}

// Links handles GET /api/v1/braintree/links?environment=test
func (h *AdminHandler) Links(c *gin.Context) {
	env, ok := queryEnvironment(c)
	if !ok {
		return
	}

	links, err := h.admin.Links(c.Request.Context(), env)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

// Health handles GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	status, err := h.admin.EndpointStatus(c.Request.Context())
	if err != nil {
		status = "unknown"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                  "ok",
		"service":                 "braintree-donations",
		"webhook_endpoint_status": status,
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid id: " + c.Param("id"),
			ErrorCode: "VALIDATION_ERROR",
		})
		return 0, false
	}
	return id, true
}

func queryEnvironment(c *gin.Context) (domain.Environment, bool) {
	switch env := domain.Environment(c.DefaultQuery("environment", string(domain.EnvironmentTest))); env {
	case domain.EnvironmentTest, domain.EnvironmentLive:
		return env, true
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "environment must be test or live",
			ErrorCode: "VALIDATION_ERROR",
		})
		return "", false
	}
}
