package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"web2app-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a placeholder build id is already taken.
var ErrConflict = errors.New("build id already taken")

const uniqueViolation = "23505"

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &DatabaseClient{db: db}, nil
}

// NewDatabaseClientWithDB wraps an already opened handle.
func NewDatabaseClientWithDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

const buildColumns = `id, build_id, platform, app_name, package_id, status,
	download_url, aab_download_url, artifact_url, error_message,
	started_at, finished_at, user_id, is_placeholder, idempotency_key,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*models.Build, error) {
	var b models.Build
	err := row.Scan(
		&b.ID, &b.BuildID, &b.Platform, &b.AppName, &b.PackageID, &b.Status,
		&b.DownloadURL, &b.AABDownloadURL, &b.ArtifactURL, &b.ErrorMessage,
		&b.StartedAt, &b.FinishedAt, &b.UserID, &b.IsPlaceholder, &b.IdempotencyKey,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBuild records a dispatched build. A webhook may have inserted the row
// first; in that case its status is kept and only the identity is filled in.
// Placeholder ids never merge into an existing row and yield ErrConflict.
func (d *DatabaseClient) CreateBuild(ctx context.Context, b *models.Build) (*models.Build, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO builds (build_id, platform, app_name, package_id, status, user_id, is_placeholder, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (build_id) DO UPDATE SET
			app_name = EXCLUDED.app_name,
			package_id = EXCLUDED.package_id,
			user_id = COALESCE(builds.user_id, EXCLUDED.user_id),
			idempotency_key = COALESCE(builds.idempotency_key, EXCLUDED.idempotency_key)
		WHERE NOT EXCLUDED.is_placeholder
		RETURNING `+buildColumns,
		b.BuildID, b.Platform, b.AppName, b.PackageID, b.Status, b.UserID, b.IsPlaceholder, b.IdempotencyKey,
	)
	created, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create build: %w", err)
	}
	return created, nil
}

func (d *DatabaseClient) GetBuild(ctx context.Context, buildID string) (*models.Build, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE build_id = $1`, buildID)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return b, nil
}

func (d *DatabaseClient) ListBuildsByUser(ctx context.Context, userID string) ([]models.Build, error) {
	return d.listBuilds(ctx, `
		SELECT `+buildColumns+` FROM builds
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
}

func (d *DatabaseClient) ListBuildsByIdempotencyKey(ctx context.Context, userID, key string) ([]models.Build, error) {
	return d.listBuilds(ctx, `
		SELECT `+buildColumns+` FROM builds
		WHERE user_id = $1 AND idempotency_key = $2
		ORDER BY created_at ASC
	`, userID, key)
}

func (d *DatabaseClient) listBuilds(ctx context.Context, query string, args ...any) ([]models.Build, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	builds := []models.Build{}
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	return builds, nil
}

// UpdateBuildStatus applies a vendor snapshot to an existing row. artifact_url
// mirrors download_url. An empty status keeps the stored one.
func (d *DatabaseClient) UpdateBuildStatus(ctx context.Context, buildID string, upd models.BuildStatusUpdate) (*models.Build, error) {
	row := d.db.QueryRowContext(ctx, `
		UPDATE builds SET
			status = COALESCE(NULLIF($2::text, ''), status),
			download_url = COALESCE($3, download_url),
			artifact_url = COALESCE($3, artifact_url),
			aab_download_url = COALESCE($4, aab_download_url),
			error_message = COALESCE($5, error_message),
			started_at = COALESCE($6, started_at),
			finished_at = COALESCE($7, finished_at)
		WHERE build_id = $1
		RETURNING `+buildColumns,
		buildID, upd.Status, upd.DownloadURL, upd.AABDownloadURL, upd.ErrorMessage, upd.StartedAt, upd.FinishedAt,
	)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update build: %w", err)
	}
	return b, nil
}

// UpsertBuildStatus applies a vendor snapshot, inserting the row when the
// build was never recorded here.
func (d *DatabaseClient) UpsertBuildStatus(ctx context.Context, buildID string, platform models.Platform, upd models.BuildStatusUpdate) (*models.Build, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO builds (build_id, platform, status, download_url, artifact_url, aab_download_url, error_message, started_at, finished_at)
		VALUES ($1, $2, COALESCE(NULLIF($3::text, ''), 'queued'), $4, $4, $5, $6, $7, $8)
		ON CONFLICT (build_id) DO UPDATE SET
			status = COALESCE(NULLIF($3::text, ''), builds.status),
			download_url = COALESCE(EXCLUDED.download_url, builds.download_url),
			artifact_url = COALESCE(EXCLUDED.artifact_url, builds.artifact_url),
			aab_download_url = COALESCE(EXCLUDED.aab_download_url, builds.aab_download_url),
			error_message = COALESCE(EXCLUDED.error_message, builds.error_message),
			started_at = COALESCE(EXCLUDED.started_at, builds.started_at),
			finished_at = COALESCE(EXCLUDED.finished_at, builds.finished_at)
		RETURNING `+buildColumns,
		buildID, platform, upd.Status, upd.DownloadURL, upd.AABDownloadURL, upd.ErrorMessage, upd.StartedAt, upd.FinishedAt,
	)
	b, err := scanBuild(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert build: %w", err)
	}
	return b, nil
}

const paymentColumns = `id, user_id, build_id, stripe_session_id, stripe_payment_intent_id,
	amount, currency, status, created_at, updated_at`

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.BuildID, &p.StripeSessionID, &p.StripePaymentIntentID,
		&p.Amount, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreatePayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO payments (user_id, build_id, stripe_session_id, stripe_payment_intent_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+paymentColumns,
		p.UserID, p.BuildID, p.StripeSessionID, p.StripePaymentIntentID, p.Amount, p.Currency, p.Status,
	)
	created, err := scanPayment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return created, nil
}

func (d *DatabaseClient) HasCompletedPayment(ctx context.Context, buildID string) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE build_id = $1 AND status = 'completed')
	`, buildID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment: %w", err)
	}
	return exists, nil
}

// CompletePaymentBySession flips the session's row to completed. It reports
// false when no row carries the session id. When another completed row for
// the same build already exists the build is paid and the call succeeds.
func (d *DatabaseClient) CompletePaymentBySession(ctx context.Context, sessionID, paymentIntentID string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE payments SET
			status = 'completed',
			stripe_payment_intent_id = COALESCE(NULLIF($2, ''), stripe_payment_intent_id)
		WHERE stripe_session_id = $1
	`, sessionID, paymentIntentID)
	if err != nil {
		if isUniqueViolation(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}
	return n > 0, nil
}

// CreateCompletedPayment inserts an already-completed row. Redelivered events
// hit the unique indexes and are ignored.
func (d *DatabaseClient) CreateCompletedPayment(ctx context.Context, p *models.Payment) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO payments (user_id, build_id, stripe_session_id, stripe_payment_intent_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'completed')
		ON CONFLICT DO NOTHING
	`, p.UserID, p.BuildID, p.StripeSessionID, p.StripePaymentIntentID, p.Amount, p.Currency)
	if err != nil {
		return fmt.Errorf("failed to insert completed payment: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
