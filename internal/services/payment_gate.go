package services

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"web2app-backend/internal/models"
)

// CheckoutParams describes the hosted checkout for one build.
type CheckoutParams struct {
	BuildID    string
	AppName    string
	UserID     string
	Amount     int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CompletedCheckout is the part of a completed session the gate records.
type CompletedCheckout struct {
	SessionID       string
	PaymentIntentID string
	BuildID         string
	UserID          string
	Amount          int64
	Currency        string
}

type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

type CheckoutResult struct {
	URL         string
	SessionID   string
	AlreadyPaid bool
}

type PaymentGateConfig struct {
	Amount      int64
	Currency    string
	FrontendURL string
}

type PaymentGate struct {
	payments PaymentStore
	provider CheckoutProvider
	cfg      PaymentGateConfig
	log      *zap.Logger
}

func NewPaymentGate(payments PaymentStore, provider CheckoutProvider, cfg PaymentGateConfig, log *zap.Logger) *PaymentGate {
	return &PaymentGate{payments: payments, provider: provider, cfg: cfg, log: log}
}

// StartCheckout opens a checkout session unless the build is already paid.
func (g *PaymentGate) StartCheckout(ctx context.Context, buildID, appName, userID string) (*CheckoutResult, error) {
	paid, err := g.IsPaid(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if paid {
		return &CheckoutResult{AlreadyPaid: true}, nil
	}

	escaped := url.QueryEscape(buildID)
	session, err := g.provider.CreateCheckoutSession(ctx, CheckoutParams{
		BuildID:  buildID,
		AppName:  appName,
		UserID:   userID,
		Amount:   g.cfg.Amount,
		Currency: g.cfg.Currency,
		// {CHECKOUT_SESSION_ID} is substituted by Stripe.
		SuccessURL: g.cfg.FrontendURL + "/payment/success?build_id=" + escaped + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  g.cfg.FrontendURL + "/payment/cancel?build_id=" + escaped,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	// The completion webhook inserts a completed row when this one is missing,
	// so a failed insert does not block the user.
	_, err = g.payments.CreatePayment(ctx, &models.Payment{
		UserID:          nullString(userID),
		BuildID:         buildID,
		StripeSessionID: session.ID,
		Amount:          g.cfg.Amount,
		Currency:        g.cfg.Currency,
		Status:          models.PaymentStatusPending,
	})
	if err != nil {
		g.log.Error("failed to record pending payment",
			zap.String("build_id", buildID),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}

	return &CheckoutResult{URL: session.URL, SessionID: session.ID}, nil
}

// IsPaid reports whether any completed payment exists for the build.
func (g *PaymentGate) IsPaid(ctx context.Context, buildID string) (bool, error) {
	paid, err := g.payments.HasCompletedPayment(ctx, buildID)
	if err != nil {
		return false, fmt.Errorf("failed to check payment for %s: %w", buildID, err)
	}
	return paid, nil
}

// CompleteCheckout marks the session's payment completed, inserting a
// completed row when the pending one was never recorded.
func (g *PaymentGate) CompleteCheckout(ctx context.Context, done CompletedCheckout) error {
	if done.BuildID == "" {
		return fmt.Errorf("checkout session %s carries no build_id", done.SessionID)
	}

	updated, err := g.payments.CompletePaymentBySession(ctx, done.SessionID, done.PaymentIntentID)
	if err != nil {
		return err
	}
	if updated {
		g.log.Info("payment completed",
			zap.String("build_id", done.BuildID),
			zap.String("session_id", done.SessionID),
		)
		return nil
	}

	amount := done.Amount
	if amount == 0 {
		amount = g.cfg.Amount
	}
	currency := done.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	err = g.payments.CreateCompletedPayment(ctx, &models.Payment{
		UserID:                nullString(done.UserID),
		BuildID:               done.BuildID,
		StripeSessionID:       done.SessionID,
		StripePaymentIntentID: nullString(done.PaymentIntentID),
		Amount:                amount,
		Currency:              currency,
		Status:                models.PaymentStatusCompleted,
	})
	if err != nil {
		return err
	}

	g.log.Warn("no pending payment for session, inserted completed payment",
		zap.String("build_id", done.BuildID),
		zap.String("session_id", done.SessionID),
	)
	return nil
}
