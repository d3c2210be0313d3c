package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/logger"
	"web2app-backend/internal/models"
)

type WebhookApplier interface {
	HandleWebhook(ctx context.Context, ev codemagic.WebhookEvent) (*models.Build, error)
}

type WebhookHandler struct {
	token  string
	status WebhookApplier
	log    *zap.Logger
}

// NewWebhookHandler accepts every caller when token is empty.
func NewWebhookHandler(token string, status WebhookApplier, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{token: token, status: status, log: log}
}

// HandleCodemagic godoc
// @Summary     Codemagic webhook endpoint
// @Description Receives build status callbacks from Codemagic and stores the normalized status and artifact links
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Authorization header string false "Shared webhook token, optionally prefixed with Bearer"
// @Param       X-Webhook-Token header string false "Shared webhook token"
// @Success     200 {object} map[string]string "status"
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/codemagic [post]
func (h *WebhookHandler) HandleCodemagic(c *gin.Context) {
	if h.token != "" && !h.authorized(c) {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization token"})
		return
	}

	var event codemagic.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse event", Message: err.Error()})
		return
	}
	if event.BuildID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing buildId"})
		return
	}

	log := logger.FromContext(c, h.log)
	build, err := h.status.HandleWebhook(c.Request.Context(), event)
	if err != nil {
		log.Error("failed to apply codemagic webhook", zap.String("build_id", event.BuildID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update build", Message: err.Error()})
		return
	}

	log.Info("codemagic webhook applied",
		zap.String("build_id", build.BuildID),
		zap.String("vendor_status", event.Status),
		zap.String("status", build.Status),
	)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) authorized(c *gin.Context) bool {
	token := c.GetHeader("X-Webhook-Token")
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}
