package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"web2app-backend/internal/logger"
	"web2app-backend/internal/middleware"
	"web2app-backend/internal/models"
	"web2app-backend/internal/services"
)

type BuildManager interface {
	Submit(ctx context.Context, userID, idempotencyKey string, cfg *models.BuildConfig) (*services.SubmitResult, error)
	ListBuilds(ctx context.Context, userID string) ([]models.Build, error)
	GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error)
}

type BuildPoller interface {
	Poll(ctx context.Context, buildID string) (*models.Build, error)
}

type PaymentChecker interface {
	IsPaid(ctx context.Context, buildID string) (bool, error)
}

type BuildsHandler struct {
	builds   BuildManager
	poller   BuildPoller
	payments PaymentChecker
	log      *zap.Logger
}

func NewBuildsHandler(builds BuildManager, poller BuildPoller, payments PaymentChecker, log *zap.Logger) *BuildsHandler {
	return &BuildsHandler{builds: builds, poller: poller, payments: payments, log: log}
}

// SubmitBuild godoc
// @Summary     Submit an app build
// @Description Validates the config, publishes the generated sources and starts one CI build per platform. Repeating a request with the same Idempotency-Key returns the original builds.
// @Tags        builds
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       Idempotency-Key header string false "Client supplied key for safe retries"
// @Param       request body models.BuildConfig true "Build config"
// @Success     200 {object} models.SubmitBuildResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     429 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /builds [post]
func (h *BuildsHandler) SubmitBuild(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	var cfg models.BuildConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	res, err := h.builds.Submit(c.Request.Context(), userID, c.GetHeader("Idempotency-Key"), &cfg)
	if err != nil {
		log := logger.FromContext(c, h.log)
		switch {
		case errors.Is(err, services.ErrInvalidConfig):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid build config", Message: err.Error()})
		case errors.Is(err, services.ErrPublishFailed):
			log.Error("build submission failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to publish app sources", Message: err.Error()})
		default:
			log.Error("build submission failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to submit build", Message: err.Error()})
		}
		return
	}

	message := fmt.Sprintf("Build started for %d platform(s)", len(res.Builds))
	if res.Replay {
		message = "Returning builds from the earlier submission"
	}
	c.JSON(http.StatusOK, models.SubmitBuildResponse{
		Success: true,
		Builds:  res.Builds,
		Message: message,
		Replay:  res.Replay,
	})
}

// ListBuilds godoc
// @Summary     List builds
// @Description Lists the caller's builds, newest first
// @Tags        builds
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.BuildListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /builds [get]
func (h *BuildsHandler) ListBuilds(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	builds, err := h.builds.ListBuilds(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list builds", Message: err.Error()})
		return
	}

	resp := models.BuildListResponse{Builds: make([]models.BuildResponse, 0, len(builds))}
	for i := range builds {
		resp.Builds = append(resp.Builds, models.NewBuildResponse(&builds[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetBuild godoc
// @Summary     Get a build
// @Tags        builds
// @Produce     json
// @Security    Bearer
// @Param       build_id path string true "Build ID"
// @Success     200 {object} models.BuildResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /builds/{build_id} [get]
func (h *BuildsHandler) GetBuild(c *gin.Context) {
	build, ok := h.ownedBuild(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.NewBuildResponse(build))
}

// SyncBuild godoc
// @Summary     Refresh build status
// @Description Polls the CI provider and stores the latest status and artifact links
// @Tags        builds
// @Produce     json
// @Security    Bearer
// @Param       build_id path string true "Build ID"
// @Success     200 {object} models.BuildResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /builds/{build_id}/sync [post]
func (h *BuildsHandler) SyncBuild(c *gin.Context) {
	build, ok := h.ownedBuild(c)
	if !ok {
		return
	}

	updated, err := h.poller.Poll(c.Request.Context(), build.BuildID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBuildNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "build not found"})
		case errors.Is(err, services.ErrVendorUnavailable):
			c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "failed to fetch build status", Message: err.Error()})
		default:
			logger.FromContext(c, h.log).Error("build sync failed", zap.String("build_id", build.BuildID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to sync build", Message: err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, models.NewBuildResponse(updated))
}

// GetPaymentStatus godoc
// @Summary     Payment status of a build
// @Tags        builds
// @Produce     json
// @Security    Bearer
// @Param       build_id path string true "Build ID"
// @Success     200 {object} models.PaymentStatusResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /builds/{build_id}/payment [get]
func (h *BuildsHandler) GetPaymentStatus(c *gin.Context) {
	build, ok := h.ownedBuild(c)
	if !ok {
		return
	}

	paid, err := h.payments.IsPaid(c.Request.Context(), build.BuildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to check payment", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.PaymentStatusResponse{BuildID: build.BuildID, Paid: paid})
}

// DownloadArtifact godoc
// @Summary     Download build output
// @Description Redirects to the artifact once the build is paid. type=aab selects the Android App Bundle.
// @Tags        builds
// @Security    Bearer
// @Param       build_id path string true "Build ID"
// @Param       type query string false "apk, ipa or aab"
// @Success     302
// @Failure     402 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /builds/{build_id}/download [get]
func (h *BuildsHandler) DownloadArtifact(c *gin.Context) {
	build, ok := h.ownedBuild(c)
	if !ok {
		return
	}

	paid, err := h.payments.IsPaid(c.Request.Context(), build.BuildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to check payment", Message: err.Error()})
		return
	}
	if !paid {
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{Error: "payment required", Message: "complete checkout to download this build"})
		return
	}

	target, err := services.ArtifactURL(build, c.Query("type"))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "artifact not available", Message: "the build has not produced this file yet"})
		return
	}
	c.Redirect(http.StatusFound, target)
}

// ownedBuild loads the :build_id of the caller, writing the error response
// when it cannot.
func (h *BuildsHandler) ownedBuild(c *gin.Context) (*models.Build, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}

	build, err := h.builds.GetBuild(c.Request.Context(), userID, c.Param("build_id"))
	if err != nil {
		if errors.Is(err, services.ErrBuildNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "build not found"})
		} else {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load build", Message: err.Error()})
		}
		return nil, false
	}
	return build, true
}
