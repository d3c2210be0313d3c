package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"web2app-backend/internal/email"
	"web2app-backend/internal/models"
	"web2app-backend/internal/supabase"
)

// Notifier tells the build owner that a build reached completed or failed.
type Notifier interface {
	NotifyBuildFinished(ctx context.Context, build *models.Build) error
}

type EmailNotifier struct {
	sender       email.EmailSender
	recipients   RecipientResolver
	dashboardURL string
	log          *zap.Logger
}

func NewEmailNotifier(sender email.EmailSender, recipients RecipientResolver, dashboardURL string, log *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, recipients: recipients, dashboardURL: dashboardURL, log: log}
}

func (n *EmailNotifier) NotifyBuildFinished(ctx context.Context, build *models.Build) error {
	if !build.UserID.Valid {
		n.log.Debug("build has no owner, skipping notification", zap.String("build_id", build.BuildID))
		return nil
	}

	to, err := n.recipients.ProfileEmail(ctx, build.UserID.String)
	if errors.Is(err, supabase.ErrNotFound) {
		n.log.Info("no email on profile, skipping notification", zap.String("user_id", build.UserID.String))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	msg := email.BuildMessage{
		AppName:       build.AppName,
		PlatformLabel: PlatformLabel(build.Platform),
		BuildID:       build.BuildID,
		DashboardURL:  n.dashboardURL,
	}
	if msg.AppName == "" {
		msg.AppName = "Your app"
	}

	var subject, html string
	if build.Status == models.BuildStatusCompleted {
		subject, html, err = email.RenderBuildCompleted(msg)
	} else {
		msg.ErrorMessage = build.ErrorMessage.String
		subject, html, err = email.RenderBuildFailed(msg)
	}
	if err != nil {
		return err
	}

	res, err := n.sender.SendEmail(ctx, to, subject, html)
	if err != nil {
		return fmt.Errorf("failed to send build email: %w", err)
	}

	n.log.Info("build notification sent",
		zap.String("build_id", build.BuildID),
		zap.String("status", build.Status),
		zap.String("message_id", res.MessageID),
	)
	return nil
}

func PlatformLabel(p models.Platform) string {
	if p == models.PlatformIOS {
		return "iOS"
	}
	return "Android"
}

// LogNotifier records finished builds in the log when no mail provider is
// configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyBuildFinished(_ context.Context, build *models.Build) error {
	n.log.Info("build finished",
		zap.String("build_id", build.BuildID),
		zap.String("platform", string(build.Platform)),
		zap.String("status", build.Status),
	)
	return nil
}
