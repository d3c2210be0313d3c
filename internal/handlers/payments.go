package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"web2app-backend/internal/logger"
	"web2app-backend/internal/middleware"
	"web2app-backend/internal/models"
	"web2app-backend/internal/services"
)

// maxWebhookBody matches the limit Stripe recommends for event payloads.
const maxWebhookBody = 65536

type CheckoutGate interface {
	StartCheckout(ctx context.Context, buildID, appName, userID string) (*services.CheckoutResult, error)
	CompleteCheckout(ctx context.Context, done services.CompletedCheckout) error
}

type StripeEventParser interface {
	ParseWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

type PaymentsHandler struct {
	builds BuildManager
	gate   CheckoutGate
	stripe StripeEventParser
	log    *zap.Logger
}

func NewPaymentsHandler(builds BuildManager, gate CheckoutGate, parser StripeEventParser, log *zap.Logger) *PaymentsHandler {
	return &PaymentsHandler{builds: builds, gate: gate, stripe: parser, log: log}
}

// CreateCheckout godoc
// @Summary     Start checkout for a build
// @Description Creates a Stripe Checkout session for the build, or reports that it is already paid
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CheckoutRequest true "Build to pay for"
// @Success     200 {object} models.CheckoutResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /payments/checkout [post]
func (h *PaymentsHandler) CreateCheckout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	build, err := h.builds.GetBuild(c.Request.Context(), userID, req.BuildID)
	if err != nil {
		if errors.Is(err, services.ErrBuildNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "build not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load build", Message: err.Error()})
		return
	}

	appName := req.AppName
	if appName == "" {
		appName = build.AppName
	}

	res, err := h.gate.StartCheckout(c.Request.Context(), build.BuildID, appName, userID)
	if err != nil {
		logger.FromContext(c, h.log).Error("checkout failed", zap.String("build_id", build.BuildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to create checkout session", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{
		URL:         res.URL,
		SessionID:   res.SessionID,
		AlreadyPaid: res.AlreadyPaid,
	})
}

// StripeWebhook godoc
// @Summary     Stripe webhook endpoint
// @Description Receives Stripe events. checkout.session.completed marks the build paid.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string false "Stripe signature"
// @Success     200 {object} map[string]bool "received"
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *PaymentsHandler) StripeWebhook(c *gin.Context) {
	log := logger.FromContext(c, h.log)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("stripe webhook body too large", zap.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to read request body", Message: err.Error()})
		return
	}

	event, err := h.stripe.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn("rejected stripe webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid webhook", Message: err.Error()})
		return
	}

	done, ok, err := services.CompletedCheckoutFromEvent(event)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid checkout session", Message: err.Error()})
		return
	}
	if !ok {
		log.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.gate.CompleteCheckout(c.Request.Context(), done); err != nil {
		log.Error("failed to record payment",
			zap.String("session_id", done.SessionID),
			zap.String("build_id", done.BuildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to record payment", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
