package services

import (
	"context"

	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/models"
)

// BuildStore persists build rows. Lookups that match nothing return
// supabase.ErrNotFound.
type BuildStore interface {
	CreateBuild(ctx context.Context, b *models.Build) (*models.Build, error)
	GetBuild(ctx context.Context, buildID string) (*models.Build, error)
	ListBuildsByUser(ctx context.Context, userID string) ([]models.Build, error)
	ListBuildsByIdempotencyKey(ctx context.Context, userID, key string) ([]models.Build, error)
	UpdateBuildStatus(ctx context.Context, buildID string, upd models.BuildStatusUpdate) (*models.Build, error)
	UpsertBuildStatus(ctx context.Context, buildID string, platform models.Platform, upd models.BuildStatusUpdate) (*models.Build, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error)
	HasCompletedPayment(ctx context.Context, buildID string) (bool, error)
	CompletePaymentBySession(ctx context.Context, sessionID, paymentIntentID string) (bool, error)
	CreateCompletedPayment(ctx context.Context, p *models.Payment) error
}

// CIClient is the part of the Codemagic API the dispatcher and poller use.
type CIClient interface {
	StartBuild(ctx context.Context, in codemagic.StartBuildIn) (*codemagic.StartBuildOut, error)
	GetBuild(ctx context.Context, buildID string) (*codemagic.BuildOut, error)
}

type ArtifactPublisher interface {
	Publish(ctx context.Context, path string, content []byte, message string) error
	PublishImage(ctx context.Context, data []byte, message string, paths ...string) error
}

type EventPublisher interface {
	PublishBuildEvent(ctx context.Context, build *models.Build) error
}

type AssetArchive interface {
	UploadAsset(ctx context.Context, packageID, filename, contentType string, data []byte) (string, error)
}

type RecipientResolver interface {
	ProfileEmail(ctx context.Context, userID string) (string, error)
}
