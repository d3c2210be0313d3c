package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"web2app-backend/internal/assembler"
	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/models"
	"web2app-backend/internal/supabase"
)

// placeholderAttempts bounds how far a colliding placeholder id is moved.
const placeholderAttempts = 5

// JobID is a vendor build id, or a locally synthesized stand-in when the
// vendor could not be reached.
type JobID struct {
	Value       string
	Synthesized bool
}

func RealJobID(id string) JobID {
	return JobID{Value: id}
}

// PlaceholderJobID has the form demo-{platform}-{epoch_ms}.
func PlaceholderJobID(platform models.Platform, at time.Time) JobID {
	return JobID{Value: fmt.Sprintf("demo-%s-%d", platform, at.UnixMilli()), Synthesized: true}
}

// EstimatedDuration is shown to the user next to a queued build.
func EstimatedDuration(platform models.Platform) string {
	if platform == models.PlatformIOS {
		return "10-15 minutes"
	}
	return "5-10 minutes"
}

type DispatcherConfig struct {
	AppID     string
	Branch    string
	Workflows assembler.WorkflowIDs
}

type DispatchRequest struct {
	Config         *models.BuildConfig
	UserID         string
	IdempotencyKey string
}

type Dispatcher struct {
	ci     CIClient
	builds BuildStore
	cfg    DispatcherConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(ci CIClient, builds BuildStore, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	return &Dispatcher{ci: ci, builds: builds, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the clock used for placeholder ids.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch starts one vendor build per requested platform. Platforms are
// handled independently: a vendor or storage failure for one does not stop
// the next, and a vendor failure degrades to a placeholder id. A platform
// listed twice is dispatched once.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) []models.BuildResult {
	results := make([]models.BuildResult, 0, len(req.Config.Platforms))
	seen := make(map[models.Platform]bool, len(req.Config.Platforms))

	for _, platform := range req.Config.Platforms {
		if seen[platform] {
			continue
		}
		seen[platform] = true

		at := d.now()
		jobID := d.startJob(ctx, req.Config, platform, at)

		build := &models.Build{
			BuildID:        jobID.Value,
			Platform:       platform,
			AppName:        req.Config.AppName,
			PackageID:      req.Config.PackageID,
			Status:         models.BuildStatusQueued,
			UserID:         nullString(req.UserID),
			IsPlaceholder:  jobID.Synthesized,
			IdempotencyKey: nullString(req.IdempotencyKey),
		}
		if err := d.record(ctx, build, at); err != nil {
			d.log.Error("failed to record build",
				zap.String("build_id", build.BuildID),
				zap.String("platform", string(platform)),
				zap.Error(err),
			)
		}

		results = append(results, models.BuildResult{
			Platform:          string(platform),
			BuildID:           build.BuildID,
			Status:            models.BuildStatusQueued,
			EstimatedDuration: EstimatedDuration(platform),
			DownloadURL:       nil,
			IsPlaceholder:     jobID.Synthesized,
		})
	}

	return results
}

// record stores the build row. A placeholder id that is already taken moves
// forward one millisecond at a time so it never lands on another user's row.
func (d *Dispatcher) record(ctx context.Context, build *models.Build, at time.Time) error {
	for attempt := 1; ; attempt++ {
		_, err := d.builds.CreateBuild(ctx, build)
		if !build.IsPlaceholder || !errors.Is(err, supabase.ErrConflict) || attempt == placeholderAttempts {
			return err
		}
		at = at.Add(time.Millisecond)
		build.BuildID = PlaceholderJobID(build.Platform, at).Value
	}
}

func (d *Dispatcher) startJob(ctx context.Context, cfg *models.BuildConfig, platform models.Platform, at time.Time) JobID {
	workflow := d.cfg.Workflows.Android
	if platform == models.PlatformIOS {
		workflow = d.cfg.Workflows.IOS
	}

	out, err := d.ci.StartBuild(ctx, codemagic.StartBuildIn{
		AppID:      d.cfg.AppID,
		WorkflowID: workflow,
		Branch:     d.cfg.Branch,
		Environment: codemagic.BuildEnvironment{Variables: map[string]string{
			"WEBSITE_URL":  cfg.WebsiteURL,
			"APP_NAME":     cfg.AppName,
			"PACKAGE_ID":   cfg.PackageID,
			"APP_PLATFORM": string(platform),
		}},
	})
	if err != nil {
		jobID := PlaceholderJobID(platform, at)
		d.log.Warn("codemagic build request failed, using placeholder id",
			zap.String("platform", string(platform)),
			zap.String("workflow", workflow),
			zap.String("build_id", jobID.Value),
			zap.Error(err),
		)
		return jobID
	}

	d.log.Info("codemagic build started",
		zap.String("platform", string(platform)),
		zap.String("build_id", out.JobID()),
	)
	return RealJobID(out.JobID())
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
