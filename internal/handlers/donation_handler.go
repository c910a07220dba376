// Package handlers contains the HTTP handlers for the donation gateway.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/service"
)

// DonationProcessor submits donations.
type DonationProcessor interface {
	ProcessDonation(ctx context.Context, req service.ProcessRequest) (*service.ProcessResult, error)
}

// ClientConfigProvider serves the payment widget.
type ClientConfigProvider interface {
	ClientConfig(ctx context.Context, amount float64) (*service.ClientConfig, error)
	TotalChanged(ctx context.Context, amount float64) (*service.WalletTransactionInfo, error)
	ValidateSubmission(ctx context.Context, values map[string]string) (domain.PaymentData, error)
}

// DonationHandler handles donation submission and the widget endpoints.
type DonationHandler struct {
	donations    DonationProcessor
	clientConfig ClientConfigProvider
}

// NewDonationHandler creates a new donation handler.
func NewDonationHandler(donations DonationProcessor, clientConfig ClientConfigProvider) *DonationHandler {
	return &DonationHandler{donations: donations, clientConfig: clientConfig}
}

// ProcessDonationRequest is the body of POST /api/v1/donations/process.
// Fields holds the widget's form fields; PaymentMethodToken charges an
// already vaulted payment method instead.
type ProcessDonationRequest struct {
	DonationID         int64             `json:"donation_id" binding:"required"`
	SubscriptionID     int64             `json:"subscription_id"`
	Fields             map[string]string `json:"fields"`
	PaymentMethodToken string            `json:"payment_method_token"`
}

// ProcessDonation handles POST /api/v1/donations/process
func (h *DonationHandler) ProcessDonation(c *gin.Context) {
	var req ProcessDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request: " + err.Error(),
			ErrorCode: "VALIDATION_ERROR",
		})
		return
	}

	var payment domain.PaymentData
	if req.PaymentMethodToken != "" {
		payment.PaymentMethodToken = req.PaymentMethodToken
	} else {
		var err error
		payment, err = h.clientConfig.ValidateSubmission(c.Request.Context(), req.Fields)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	result, err := h.donations.ProcessDonation(c.Request.Context(), service.ProcessRequest{
		DonationID:     req.DonationID,
		SubscriptionID: req.SubscriptionID,
		Payment:        payment,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if !result.Success {
		c.JSON(statusForCode(result.ErrorCode), result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ClientConfig handles GET /api/v1/braintree/client-config?amount=
func (h *DonationHandler) ClientConfig(c *gin.Context) {
	amount, ok := parseAmount(c, c.Query("amount"))
	if !ok {
		return
	}

	cfg, err := h.clientConfig.ClientConfig(c.Request.Context(), amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// totalChangedRequest is the body of POST /api/v1/braintree/client-config/total.
type totalChangedRequest struct {
	Amount float64 `json:"amount"`
}

// TotalChanged handles POST /api/v1/braintree/client-config/total
func (h *DonationHandler) TotalChanged(c *gin.Context) {
	var req totalChangedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "Invalid request: " + err.Error(),
			ErrorCode: "VALIDATION_ERROR",
		})
		return
	}

	info, err := h.clientConfig.TotalChanged(c.Request.Context(), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func parseAmount(c *gin.Context, raw string) (float64, bool) {
	if raw == "" {
		return 0, true
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "amount must be a non-negative number",
			ErrorCode: "VALIDATION_ERROR",
		})
		return 0, false
	}
	return amount, true
}
