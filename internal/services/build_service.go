package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"web2app-backend/internal/assembler"
	"web2app-backend/internal/models"
	"web2app-backend/internal/supabase"
)

var (
	ErrInvalidConfig = errors.New("invalid build config")
	ErrPublishFailed = errors.New("failed to publish app sources")
)

type SubmitResult struct {
	Builds []models.BuildResult
	// Replay is set when the idempotency key matched an earlier submission.
	Replay bool
}

type BuildService struct {
	publisher  ArtifactPublisher
	dispatcher *Dispatcher
	builds     BuildStore
	assets     AssetArchive
	workflows  assembler.WorkflowIDs
	log        *zap.Logger
}

func NewBuildService(
	publisher ArtifactPublisher,
	dispatcher *Dispatcher,
	builds BuildStore,
	assets AssetArchive,
	workflows assembler.WorkflowIDs,
	log *zap.Logger,
) *BuildService {
	return &BuildService{
		publisher:  publisher,
		dispatcher: dispatcher,
		builds:     builds,
		assets:     assets,
		workflows:  workflows,
		log:        log,
	}
}

// Submit runs the pipeline: validate, render, publish, dispatch.
func (s *BuildService) Submit(ctx context.Context, userID, idempotencyKey string, cfg *models.BuildConfig) (*SubmitResult, error) {
	if err := assembler.Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if idempotencyKey != "" && userID != "" {
		existing, err := s.builds.ListBuildsByIdempotencyKey(ctx, userID, idempotencyKey)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			s.log.Info("replaying build submission",
				zap.String("idempotency_key", idempotencyKey),
				zap.Int("builds", len(existing)),
			)
			return &SubmitResult{Builds: replayResults(existing), Replay: true}, nil
		}
	}

	if cfg.KeystoreConfig != nil {
		s.log.Info("keystore config supplied but signing is not wired yet; ignoring",
			zap.String("package_id", cfg.PackageID))
	}

	if err := s.publishSources(ctx, cfg); err != nil {
		return nil, err
	}
	s.publishAssets(ctx, cfg)

	results := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Config:         cfg,
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
	})
	return &SubmitResult{Builds: results}, nil
}

func (s *BuildService) publishSources(ctx context.Context, cfg *models.BuildConfig) error {
	manifest, err := assembler.RenderManifest(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	entryPoint, err := assembler.BuildEntryPoint(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	pipeline, err := assembler.RenderPipeline(cfg, s.workflows)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	files := []struct {
		path    string
		content []byte
	}{
		{assembler.ManifestPath, manifest},
		{assembler.EntryPointPath, []byte(entryPoint)},
		{assembler.PipelinePath, pipeline},
	}
	for _, f := range files {
		msg := fmt.Sprintf("Update %s for %s", f.path, cfg.AppName)
		if err := s.publisher.Publish(ctx, f.path, f.content, msg); err != nil {
			s.log.Error("failed to publish source file", zap.String("path", f.path), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
	}
	return nil
}

// publishAssets is best-effort: failures are logged and the build goes on
// with whatever images the repository already holds.
func (s *BuildService) publishAssets(ctx context.Context, cfg *models.BuildConfig) {
	assets := []struct {
		name    string
		payload string
		paths   []string
	}{
		{"icon", cfg.AppIcon, assembler.IconPaths},
		{"splash", cfg.SplashConfig.Image, assembler.SplashPaths},
	}

	for _, a := range assets {
		data, contentType, err := assembler.DecodeImage(a.payload)
		if err != nil {
			s.log.Warn("skipping undecodable image", zap.String("asset", a.name), zap.Error(err))
			continue
		}
		if data == nil {
			continue
		}

		msg := fmt.Sprintf("Update %s for %s", a.name, cfg.AppName)
		if err := s.publisher.PublishImage(ctx, data, msg, a.paths...); err != nil {
			s.log.Warn("failed to publish image", zap.String("asset", a.name), zap.Error(err))
		}

		if s.assets != nil {
			filename := a.name + extensionFor(contentType)
			if _, err := s.assets.UploadAsset(ctx, cfg.PackageID, filename, contentType, data); err != nil {
				s.log.Warn("failed to archive image", zap.String("asset", a.name), zap.Error(err))
			}
		}
	}
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func replayResults(builds []models.Build) []models.BuildResult {
	results := make([]models.BuildResult, 0, len(builds))
	for _, b := range builds {
		r := models.BuildResult{
			Platform:          string(b.Platform),
			BuildID:           b.BuildID,
			Status:            b.Status,
			EstimatedDuration: EstimatedDuration(b.Platform),
			IsPlaceholder:     b.IsPlaceholder,
		}
		if b.DownloadURL.Valid {
			r.DownloadURL = &b.DownloadURL.String
		}
		results = append(results, r)
	}
	return results
}

func (s *BuildService) ListBuilds(ctx context.Context, userID string) ([]models.Build, error) {
	return s.builds.ListBuildsByUser(ctx, userID)
}

// ErrNoArtifact is returned when the requested file has not been produced.
var ErrNoArtifact = errors.New("artifact not available")

// GetBuild returns the build when it belongs to userID. Builds of other users
// and unowned builds look missing.
func (s *BuildService) GetBuild(ctx context.Context, userID, buildID string) (*models.Build, error) {
	build, err := s.builds.GetBuild(ctx, buildID)
	if err != nil {
		if errors.Is(err, supabase.ErrNotFound) {
			return nil, ErrBuildNotFound
		}
		return nil, err
	}
	if !build.UserID.Valid || build.UserID.String != userID {
		return nil, ErrBuildNotFound
	}
	return build, nil
}

// ArtifactURL picks the file to hand out: "aab" selects the bundle, anything
// else the primary download.
func ArtifactURL(build *models.Build, kind string) (string, error) {
	if strings.EqualFold(kind, "aab") {
		if build.AABDownloadURL.Valid && build.AABDownloadURL.String != "" {
			return build.AABDownloadURL.String, nil
		}
		return "", ErrNoArtifact
	}
	if build.DownloadURL.Valid && build.DownloadURL.String != "" {
		return build.DownloadURL.String, nil
	}
	if build.ArtifactURL.Valid && build.ArtifactURL.String != "" {
		return build.ArtifactURL.String, nil
	}
	return "", ErrNoArtifact
}
