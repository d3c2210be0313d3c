package supabase_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"web2app-backend/internal/models"
	"web2app-backend/internal/supabase"
)

func setupMockDB(t *testing.T) (*supabase.DatabaseClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return supabase.NewDatabaseClientWithDB(db), mock
}

var buildColumns = []string{
	"id", "build_id", "platform", "app_name", "package_id", "status",
	"download_url", "aab_download_url", "artifact_url", "error_message",
	"started_at", "finished_at", "user_id", "is_placeholder", "idempotency_key",
	"created_at", "updated_at",
}

func buildRow(buildID, status string, downloadURL any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(buildColumns).AddRow(
		uuid.New().String(), buildID, "android", "Demo", "com.demo.app", status,
		downloadURL, nil, downloadURL, nil,
		nil, nil, "user-1", false, nil,
		now, now,
	)
}

func TestGetBuild_Found(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM builds WHERE build_id = $1`)).
		WithArgs("cm-1").
		WillReturnRows(buildRow("cm-1", "completed", "https://cdn/app.apk"))

	b, err := client.GetBuild(context.Background(), "cm-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformAndroid, b.Platform)
	assert.Equal(t, "https://cdn/app.apk", b.DownloadURL.String)
	assert.False(t, b.AABDownloadURL.Valid)
	assert.Equal(t, "user-1", b.UserID.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBuild_NotFound(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM builds WHERE build_id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(buildColumns))

	_, err := client.GetBuild(context.Background(), "missing")
	assert.ErrorIs(t, err, supabase.ErrNotFound)
}

func TestUpdateBuildStatus_NotFound(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE builds SET`)).
		WillReturnRows(sqlmock.NewRows(buildColumns))

	_, err := client.UpdateBuildStatus(context.Background(), "missing", models.BuildStatusUpdate{Status: "building"})
	assert.ErrorIs(t, err, supabase.ErrNotFound)
}

func TestUpdateBuildStatus_PassesNullsForMissingFields(t *testing.T) {
	client, mock := setupMockDB(t)
	url := "https://cdn/app.apk"

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE builds SET`)).
		WithArgs("cm-1", "completed", url, nil, nil, nil, nil).
		WillReturnRows(buildRow("cm-1", "completed", url))

	b, err := client.UpdateBuildStatus(context.Background(), "cm-1", models.BuildStatusUpdate{
		Status:      "completed",
		DownloadURL: &url,
	})
	require.NoError(t, err)
	assert.Equal(t, url, b.ArtifactURL.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBuildStatus_EmptyStatusKeepsStored(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`status = COALESCE(NULLIF($2::text, ''), status)`)).
		WithArgs("cm-1", "", nil, nil, nil, nil, nil).
		WillReturnRows(buildRow("cm-1", "completed", "https://cdn/app.apk"))

	b, err := client.UpdateBuildStatus(context.Background(), "cm-1", models.BuildStatusUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "completed", b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBuild_PlaceholderConflict(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE NOT EXCLUDED.is_placeholder`)).
		WillReturnRows(sqlmock.NewRows(buildColumns))

	_, err := client.CreateBuild(context.Background(), &models.Build{
		BuildID:       "demo-android-1700000000000",
		Platform:      models.PlatformAndroid,
		Status:        models.BuildStatusQueued,
		UserID:        sql.NullString{String: "user-2", Valid: true},
		IsPlaceholder: true,
	})
	assert.ErrorIs(t, err, supabase.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBuild_ReturnsRow(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO builds`)).
		WillReturnRows(buildRow("cm-1", "queued", nil))

	b, err := client.CreateBuild(context.Background(), &models.Build{
		BuildID:  "cm-1",
		Platform: models.PlatformAndroid,
		Status:   models.BuildStatusQueued,
	})
	require.NoError(t, err)
	assert.Equal(t, "cm-1", b.BuildID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasCompletedPayment(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("cm-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	paid, err := client.HasCompletedPayment(context.Background(), "cm-1")
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestCompletePaymentBySession(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET`)).
		WithArgs("cs_1", "pi_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET`)).
		WithArgs("cs_unknown", "pi_2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := client.CompletePaymentBySession(context.Background(), "cs_1", "pi_1")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = client.CompletePaymentBySession(context.Background(), "cs_unknown", "pi_2")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletePaymentBySession_AlreadyPaidBuild(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE payments SET`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	updated, err := client.CompletePaymentBySession(context.Background(), "cs_2", "pi_2")
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestCreateCompletedPayment_IgnoresConflicts(t *testing.T) {
	client, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), "cm-1", "cs_1", sqlmock.AnyArg(), int64(280000), "inr").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := client.CreateCompletedPayment(context.Background(), &models.Payment{
		UserID:          sql.NullString{String: "user-1", Valid: true},
		BuildID:         "cm-1",
		StripeSessionID: "cs_1",
		Amount:          280000,
		Currency:        "inr",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
