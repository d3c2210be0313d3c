package models

import "time"

type BuildResponse struct {
	BuildID        string     `json:"build_id"`
	Platform       string     `json:"platform"`
	AppName        string     `json:"app_name"`
	PackageID      string     `json:"package_id"`
	Status         string     `json:"status"`
	DownloadURL    *string    `json:"download_url"`
	AABDownloadURL *string    `json:"aab_download_url"`
	ArtifactURL    *string    `json:"artifact_url"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	IsPlaceholder  bool       `json:"is_placeholder"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewBuildResponse flattens nullable columns into JSON nulls.
func NewBuildResponse(b *Build) BuildResponse {
	resp := BuildResponse{
		BuildID:       b.BuildID,
		Platform:      string(b.Platform),
		AppName:       b.AppName,
		PackageID:     b.PackageID,
		Status:        b.Status,
		IsPlaceholder: b.IsPlaceholder,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.DownloadURL.Valid {
		resp.DownloadURL = &b.DownloadURL.String
	}
	if b.AABDownloadURL.Valid {
		resp.AABDownloadURL = &b.AABDownloadURL.String
	}
	if b.ArtifactURL.Valid {
		resp.ArtifactURL = &b.ArtifactURL.String
	}
	if b.ErrorMessage.Valid {
		resp.ErrorMessage = &b.ErrorMessage.String
	}
	if b.StartedAt.Valid {
		resp.StartedAt = &b.StartedAt.Time
	}
	if b.FinishedAt.Valid {
		resp.FinishedAt = &b.FinishedAt.Time
	}
	return resp
}

type BuildListResponse struct {
	Builds []BuildResponse `json:"builds"`
}

// BuildResult is returned per platform by a build submission.
type BuildResult struct {
	Platform          string  `json:"platform"`
	BuildID           string  `json:"build_id"`
	Status            string  `json:"status"`
	EstimatedDuration string  `json:"estimated_duration"`
	DownloadURL       *string `json:"download_url"`
	IsPlaceholder     bool    `json:"is_placeholder"`
}

type SubmitBuildResponse struct {
	Success bool          `json:"success"`
	Builds  []BuildResult `json:"builds"`
	Message string        `json:"message,omitempty"`
	Replay  bool          `json:"replay,omitempty"`
}

type CheckoutResponse struct {
	URL         string `json:"url,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	AlreadyPaid bool   `json:"already_paid,omitempty"`
}

type PaymentStatusResponse struct {
	BuildID string `json:"build_id"`
	Paid    bool   `json:"paid"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
