package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Canonical build statuses.
const (
	BuildStatusQueued    = "queued"
	BuildStatusBuilding  = "building"
	BuildStatusCompleted = "completed"
	BuildStatusFailed    = "failed"
	BuildStatusCanceled  = "canceled"
)

// IsTerminalStatus reports whether no further transition is expected.
func IsTerminalStatus(status string) bool {
	switch status {
	case BuildStatusCompleted, BuildStatusFailed, BuildStatusCanceled:
		return true
	}
	return false
}

type Build struct {
	ID             uuid.UUID
	BuildID        string
	Platform       Platform
	AppName        string
	PackageID      string
	Status         string
	DownloadURL    sql.NullString
	AABDownloadURL sql.NullString
	ArtifactURL    sql.NullString
	ErrorMessage   sql.NullString
	StartedAt      sql.NullTime
	FinishedAt     sql.NullTime
	UserID         sql.NullString
	IsPlaceholder  bool
	IdempotencyKey sql.NullString
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BuildStatusUpdate is a vendor snapshot applied to an existing build row.
// Nil fields and an empty Status leave the stored value untouched.
type BuildStatusUpdate struct {
	Status         string
	DownloadURL    *string
	AABDownloadURL *string
	ErrorMessage   *string
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

type Payment struct {
	ID                    uuid.UUID
	UserID                sql.NullString
	BuildID               string
	StripeSessionID       string
	StripePaymentIntentID sql.NullString
	Amount                int64
	Currency              string
	Status                string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
