package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/models"
	"web2app-backend/internal/supabase"
)

var (
	ErrBuildNotFound = errors.New("build not found")
	// ErrVendorUnavailable wraps a failed status query against the CI vendor.
	ErrVendorUnavailable = errors.New("ci vendor unavailable")
)

// NormalizeStatus folds Codemagic's status vocabulary onto ours. Both the
// webhook and the poll path go through here. Unknown values are kept as is.
// An empty status yields "" and leaves the stored status untouched.
func NormalizeStatus(vendor string) string {
	switch s := strings.ToLower(strings.TrimSpace(vendor)); s {
	case "finished":
		return models.BuildStatusCompleted
	case "preparing", "fetching", "finishing", "publishing", "testing":
		return models.BuildStatusBuilding
	case "timeout":
		return models.BuildStatusFailed
	case "cancelled", "skipped":
		return models.BuildStatusCanceled
	case "":
		return ""
	default:
		return s
	}
}

// Artifacts holds the download links picked from a vendor artefact list.
type Artifacts struct {
	DownloadURL    string
	AABDownloadURL string
}

// ExtractArtifacts picks the first apk as the download and the first aab as
// the bundle, wherever they sit in the list. An ipa is the download when
// there is no apk. Without an apk or ipa the first artefact is the download.
func ExtractArtifacts(artefacts []codemagic.Artefact) Artifacts {
	var apk, aab, ipa, first string
	for _, a := range artefacts {
		if a.URL == "" {
			continue
		}
		if first == "" {
			first = a.URL
		}
		switch artefactKind(a) {
		case "apk":
			if apk == "" {
				apk = a.URL
			}
		case "aab":
			if aab == "" {
				aab = a.URL
			}
		case "ipa":
			if ipa == "" {
				ipa = a.URL
			}
		}
	}

	out := Artifacts{DownloadURL: apk, AABDownloadURL: aab}
	if out.DownloadURL == "" {
		out.DownloadURL = ipa
	}
	if out.DownloadURL == "" {
		out.DownloadURL = first
	}
	return out
}

func artefactKind(a codemagic.Artefact) string {
	if t := strings.ToLower(a.Type); t == "apk" || t == "aab" || t == "ipa" {
		return t
	}
	for _, candidate := range []string{a.Name, a.URL} {
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.SplitN(candidate, "?", 2)[0])), ".")
		if ext == "apk" || ext == "aab" || ext == "ipa" {
			return ext
		}
	}
	return ""
}

// PlatformForWorkflow infers the platform of a build the dispatcher never
// recorded.
func PlatformForWorkflow(workflowID string) models.Platform {
	if strings.Contains(strings.ToLower(workflowID), "android") {
		return models.PlatformAndroid
	}
	return models.PlatformIOS
}

// Snapshot is the vendor's current view of one build.
type Snapshot struct {
	Status     string
	Artefacts  []codemagic.Artefact
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (s Snapshot) update() models.BuildStatusUpdate {
	upd := models.BuildStatusUpdate{
		Status:     NormalizeStatus(s.Status),
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	artifacts := ExtractArtifacts(s.Artefacts)
	if artifacts.DownloadURL != "" {
		upd.DownloadURL = &artifacts.DownloadURL
	}
	if artifacts.AABDownloadURL != "" {
		upd.AABDownloadURL = &artifacts.AABDownloadURL
	}
	if s.Error != "" {
		upd.ErrorMessage = &s.Error
	}
	return upd
}

type StatusSynchronizer struct {
	ci       CIClient
	builds   BuildStore
	events   EventPublisher
	notifier Notifier
	log      *zap.Logger
}

func NewStatusSynchronizer(ci CIClient, builds BuildStore, events EventPublisher, notifier Notifier, log *zap.Logger) *StatusSynchronizer {
	return &StatusSynchronizer{ci: ci, builds: builds, events: events, notifier: notifier, log: log}
}

// HandleWebhook applies a pushed lifecycle event, inserting the row when the
// event arrives before the dispatcher recorded it.
func (s *StatusSynchronizer) HandleWebhook(ctx context.Context, ev codemagic.WebhookEvent) (*models.Build, error) {
	if ev.BuildID == "" {
		return nil, fmt.Errorf("webhook event has no buildId")
	}
	snap := Snapshot{
		Status:     ev.Status,
		Artefacts:  ev.Artefacts,
		Error:      ev.Error,
		StartedAt:  ev.StartedAt,
		FinishedAt: ev.FinishedAt,
	}
	return s.ApplyStatus(ctx, ev.BuildID, snap, PlatformForWorkflow(ev.WorkflowID), true)
}

// Poll asks the vendor for the build's state and stores it. The row must
// already exist. Placeholder builds have no vendor counterpart and are
// returned unchanged.
func (s *StatusSynchronizer) Poll(ctx context.Context, buildID string) (*models.Build, error) {
	existing, err := s.builds.GetBuild(ctx, buildID)
	if errors.Is(err, supabase.ErrNotFound) {
		return nil, ErrBuildNotFound
	}
	if err != nil {
		return nil, err
	}
	if existing.IsPlaceholder {
		return existing, nil
	}

	vendor, err := s.ci.GetBuild(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}

	snap := Snapshot{
		Status:     vendor.Status,
		Artefacts:  vendor.Artefacts,
		Error:      vendor.Error,
		StartedAt:  vendor.StartedAt,
		FinishedAt: vendor.FinishedAt,
	}
	return s.ApplyStatus(ctx, buildID, snap, existing.Platform, false)
}

// ApplyStatus writes a vendor snapshot and fires the side effects. With
// insertMissing unset a missing row yields ErrBuildNotFound.
func (s *StatusSynchronizer) ApplyStatus(ctx context.Context, buildID string, snap Snapshot, platform models.Platform, insertMissing bool) (*models.Build, error) {
	previous := ""
	if prev, err := s.builds.GetBuild(ctx, buildID); err == nil {
		previous = prev.Status
	} else if !errors.Is(err, supabase.ErrNotFound) {
		return nil, err
	}

	upd := snap.update()

	var (
		build *models.Build
		err   error
	)
	if insertMissing {
		build, err = s.builds.UpsertBuildStatus(ctx, buildID, platform, upd)
	} else {
		build, err = s.builds.UpdateBuildStatus(ctx, buildID, upd)
		if errors.Is(err, supabase.ErrNotFound) {
			return nil, ErrBuildNotFound
		}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("build status synced",
		zap.String("build_id", buildID),
		zap.String("vendor_status", snap.Status),
		zap.String("status", build.Status),
		zap.String("previous_status", previous),
	)

	if s.events != nil {
		if err := s.events.PublishBuildEvent(ctx, build); err != nil {
			s.log.Warn("failed to broadcast build status", zap.String("build_id", buildID), zap.Error(err))
		}
	}

	if build.Status != previous && (build.Status == models.BuildStatusCompleted || build.Status == models.BuildStatusFailed) {
		if err := s.notifier.NotifyBuildFinished(ctx, build); err != nil {
			s.log.Warn("build notification failed", zap.String("build_id", buildID), zap.Error(err))
		}
	}

	return build, nil
}
