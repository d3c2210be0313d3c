package services_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"web2app-backend/internal/codemagic"
	"web2app-backend/internal/email"
	"web2app-backend/internal/models"
	"web2app-backend/internal/services"
	"web2app-backend/internal/supabase"
)

// mockBuildStore keeps build rows in memory with the same COALESCE rules as
// the SQL store.
type mockBuildStore struct {
	mu        sync.Mutex
	builds    map[string]*models.Build
	order     []string
	createErr error
}

func newMockBuildStore() *mockBuildStore {
	return &mockBuildStore{builds: make(map[string]*models.Build)}
}

func (m *mockBuildStore) CreateBuild(_ context.Context, b *models.Build) (*models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if existing, ok := m.builds[b.BuildID]; ok {
		if b.IsPlaceholder {
			return nil, supabase.ErrConflict
		}
		existing.AppName = b.AppName
		existing.PackageID = b.PackageID
		if !existing.UserID.Valid {
			existing.UserID = b.UserID
		}
		cp := *existing
		return &cp, nil
	}
	cp := *b
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.builds[b.BuildID] = &cp
	m.order = append(m.order, b.BuildID)
	out := cp
	return &out, nil
}

func (m *mockBuildStore) GetBuild(_ context.Context, buildID string) (*models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[buildID]
	if !ok {
		return nil, supabase.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBuildStore) ListBuildsByUser(_ context.Context, userID string) ([]models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Build
	for _, id := range m.order {
		if b := m.builds[id]; b.UserID.String == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBuildStore) ListBuildsByIdempotencyKey(_ context.Context, userID, key string) ([]models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Build
	for _, id := range m.order {
		b := m.builds[id]
		if b.UserID.String == userID && b.IdempotencyKey.String == key {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBuildStore) UpdateBuildStatus(_ context.Context, buildID string, upd models.BuildStatusUpdate) (*models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[buildID]
	if !ok {
		return nil, supabase.ErrNotFound
	}
	applyUpdate(b, upd)
	cp := *b
	return &cp, nil
}

func (m *mockBuildStore) UpsertBuildStatus(_ context.Context, buildID string, platform models.Platform, upd models.BuildStatusUpdate) (*models.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.builds[buildID]
	if !ok {
		b = &models.Build{BuildID: buildID, Platform: platform, Status: models.BuildStatusQueued, CreatedAt: time.Now()}
		m.builds[buildID] = b
		m.order = append(m.order, buildID)
	}
	applyUpdate(b, upd)
	cp := *b
	return &cp, nil
}

func applyUpdate(b *models.Build, upd models.BuildStatusUpdate) {
	if upd.Status != "" {
		b.Status = upd.Status
	}
	if upd.DownloadURL != nil {
		b.DownloadURL = sql.NullString{String: *upd.DownloadURL, Valid: true}
		b.ArtifactURL = b.DownloadURL
	}
	if upd.AABDownloadURL != nil {
		b.AABDownloadURL = sql.NullString{String: *upd.AABDownloadURL, Valid: true}
	}
	if upd.ErrorMessage != nil {
		b.ErrorMessage = sql.NullString{String: *upd.ErrorMessage, Valid: true}
	}
	if upd.StartedAt != nil {
		b.StartedAt = sql.NullTime{Time: *upd.StartedAt, Valid: true}
	}
	if upd.FinishedAt != nil {
		b.FinishedAt = sql.NullTime{Time: *upd.FinishedAt, Valid: true}
	}
	b.UpdatedAt = time.Now()
}

type mockPaymentStore struct {
	mu        sync.Mutex
	payments  []models.Payment
	createErr error
}

func (m *mockPaymentStore) CreatePayment(_ context.Context, p *models.Payment) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.payments = append(m.payments, *p)
	cp := *p
	return &cp, nil
}

func (m *mockPaymentStore) HasCompletedPayment(_ context.Context, buildID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BuildID == buildID && p.Status == models.PaymentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentStore) CompletePaymentBySession(_ context.Context, sessionID, paymentIntentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.payments {
		if m.payments[i].StripeSessionID == sessionID {
			m.payments[i].Status = models.PaymentStatusCompleted
			if paymentIntentID != "" {
				m.payments[i].StripePaymentIntentID = sql.NullString{String: paymentIntentID, Valid: true}
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPaymentStore) CreateCompletedPayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.BuildID == p.BuildID && existing.Status == models.PaymentStatusCompleted {
			return nil
		}
	}
	cp := *p
	cp.Status = models.PaymentStatusCompleted
	m.payments = append(m.payments, cp)
	return nil
}

func (m *mockPaymentStore) count(buildID, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.payments {
		if p.BuildID == buildID && p.Status == status {
			n++
		}
	}
	return n
}

type mockCIClient struct {
	mu       sync.Mutex
	started  []codemagic.StartBuildIn
	failFor  map[string]bool // workflow ids that fail
	nextID   int
	builds   map[string]*codemagic.BuildOut
	getErr   error
	getCalls int
}

func newMockCIClient() *mockCIClient {
	return &mockCIClient{failFor: make(map[string]bool), builds: make(map[string]*codemagic.BuildOut)}
}

func (m *mockCIClient) StartBuild(_ context.Context, in codemagic.StartBuildIn) (*codemagic.StartBuildOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, in)
	if m.failFor[in.WorkflowID] {
		return nil, &codemagic.APIError{StatusCode: 500, Body: "boom"}
	}
	m.nextID++
	return &codemagic.StartBuildOut{ID: fmt.Sprintf("cm-%d", m.nextID)}, nil
}

func (m *mockCIClient) GetBuild(_ context.Context, buildID string) (*codemagic.BuildOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.builds[buildID]
	if !ok {
		return nil, &codemagic.APIError{StatusCode: 404}
	}
	return b, nil
}

type publishedFile struct {
	path    string
	content []byte
}

type mockPublisher struct {
	mu        sync.Mutex
	files     []publishedFile
	failPaths map[string]bool
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failPaths: make(map[string]bool)}
}

func (m *mockPublisher) Publish(_ context.Context, path string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPaths[path] {
		return fmt.Errorf("publish %s rejected", path)
	}
	m.files = append(m.files, publishedFile{path: path, content: content})
	return nil
}

func (m *mockPublisher) PublishImage(ctx context.Context, data []byte, msg string, paths ...string) error {
	var failed []string
	for _, p := range paths {
		if err := m.Publish(ctx, p, data, msg); err != nil {
			failed = append(failed, p)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed: %v", failed)
	}
	return nil
}

func (m *mockPublisher) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f.path)
	}
	return out
}

type mockNotifier struct {
	mu       sync.Mutex
	notified []models.Build
	err      error
}

func (m *mockNotifier) NotifyBuildFinished(_ context.Context, build *models.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, *build)
	return m.err
}

type mockEvents struct {
	published []string
}

func (m *mockEvents) PublishBuildEvent(_ context.Context, build *models.Build) error {
	m.published = append(m.published, build.BuildID+":"+build.Status)
	return nil
}

type mockEmailSender struct {
	to      string
	subject string
	html    string
	err     error
	calls   int
}

func (m *mockEmailSender) SendEmail(_ context.Context, to, subject, html string) (email.SendResult, error) {
	m.calls++
	m.to, m.subject, m.html = to, subject, html
	if m.err != nil {
		return email.SendResult{}, m.err
	}
	return email.SendResult{MessageID: "msg-1", SentAt: time.Now()}, nil
}

type mockRecipients struct {
	emails map[string]string
}

func (m *mockRecipients) ProfileEmail(_ context.Context, userID string) (string, error) {
	if e, ok := m.emails[userID]; ok {
		return e, nil
	}
	return "", supabase.ErrNotFound
}

type mockCheckoutProvider struct {
	calls  []services.CheckoutParams
	err    error
	nextID int
}

func (m *mockCheckoutProvider) CreateCheckoutSession(_ context.Context, params services.CheckoutParams) (*services.CheckoutSession, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	m.nextID++
	id := fmt.Sprintf("cs_test_%d", m.nextID)
	return &services.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}
