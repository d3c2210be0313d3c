package handlers_test

import (
	"context"
	"database/sql"

	"github.com/gin-gonic/gin"
	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/middleware"
	"web2app-backend/internal/models"
	"web2app-backend/internal/services"
)

type stubBuilds struct {
	builds    map[string]*models.Build
	submitRes *services.SubmitResult
	submitErr error
	gotKey    string
	gotConfig *models.BuildConfig
}

func (s *stubBuilds) Submit(_ context.Context, _ string, key string, cfg *models.BuildConfig) (*services.SubmitResult, error) {
	s.gotKey, s.gotConfig = key, cfg
	return s.submitRes, s.submitErr
}

func (s *stubBuilds) ListBuilds(_ context.Context, userID string) ([]models.Build, error) {
	var out []models.Build
	for _, b := range s.builds {
		if b.UserID.String == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *stubBuilds) GetBuild(_ context.Context, userID, buildID string) (*models.Build, error) {
	b, ok := s.builds[buildID]
	if !ok || b.UserID.String != userID {
		return nil, services.ErrBuildNotFound
	}
	return b, nil
}

type stubPoller struct {
	build *models.Build
	err   error
}

func (s *stubPoller) Poll(_ context.Context, _ string) (*models.Build, error) {
	return s.build, s.err
}

type stubPayments struct {
	paid      map[string]bool
	started   []string
	completed []services.CompletedCheckout
}

func (s *stubPayments) IsPaid(_ context.Context, buildID string) (bool, error) {
	return s.paid[buildID], nil
}

func (s *stubPayments) StartCheckout(_ context.Context, buildID, appName, _ string) (*services.CheckoutResult, error) {
	if s.paid[buildID] {
		return &services.CheckoutResult{AlreadyPaid: true}, nil
	}
	s.started = append(s.started, buildID+":"+appName)
	return &services.CheckoutResult{URL: "https://checkout.stripe.com/c/pay/cs_1", SessionID: "cs_1"}, nil
}

func (s *stubPayments) CompleteCheckout(_ context.Context, done services.CompletedCheckout) error {
	s.completed = append(s.completed, done)
	if s.paid == nil {
		s.paid = make(map[string]bool)
	}
	s.paid[done.BuildID] = true
	return nil
}

type stubWebhooks struct {
	events []codemagic.WebhookEvent
	err    error
}

func (s *stubWebhooks) HandleWebhook(_ context.Context, ev codemagic.WebhookEvent) (*models.Build, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.events = append(s.events, ev)
	return &models.Build{BuildID: ev.BuildID, Status: services.NormalizeStatus(ev.Status)}, nil
}

// asUser stands in for the JWT middleware.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func ownedBuild(id, userID string) *models.Build {
	return &models.Build{
		BuildID:   id,
		Platform:  models.PlatformAndroid,
		AppName:   "Demo",
		PackageID: "com.demo.app",
		Status:    models.BuildStatusQueued,
		UserID:    sql.NullString{String: userID, Valid: true},
	}
}
