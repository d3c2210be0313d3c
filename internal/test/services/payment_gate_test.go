package services_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"web2app-backend/internal/models"
	"web2app-backend/internal/services"
)

func newGate(payments *mockPaymentStore, provider *mockCheckoutProvider) *services.PaymentGate {
	return services.NewPaymentGate(payments, provider, services.PaymentGateConfig{
		Amount:      280000,
		Currency:    "inr",
		FrontendURL: "https://app.example.com",
	}, zap.NewNop())
}

func TestStartCheckout_CreatesPendingPayment(t *testing.T) {
	payments := &mockPaymentStore{}
	provider := &mockCheckoutProvider{}

	res, err := newGate(payments, provider).StartCheckout(t.Context(), "b1", "Demo", "user-1")

	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Contains(t, res.URL, "cs_test_1")

	require.Len(t, provider.calls, 1)
	call := provider.calls[0]
	assert.Equal(t, int64(280000), call.Amount)
	assert.Equal(t, "inr", call.Currency)
	assert.Equal(t, "https://app.example.com/payment/success?build_id=b1&session_id={CHECKOUT_SESSION_ID}", call.SuccessURL)
	assert.Equal(t, "https://app.example.com/payment/cancel?build_id=b1", call.CancelURL)

	require.Len(t, payments.payments, 1)
	assert.Equal(t, models.PaymentStatusPending, payments.payments[0].Status)
	assert.Equal(t, "cs_test_1", payments.payments[0].StripeSessionID)
}

func TestStartCheckout_AlreadyPaidShortCircuits(t *testing.T) {
	payments := &mockPaymentStore{payments: []models.Payment{{BuildID: "b1", Status: models.PaymentStatusCompleted}}}
	provider := &mockCheckoutProvider{}

	res, err := newGate(payments, provider).StartCheckout(t.Context(), "b1", "Demo", "user-1")

	require.NoError(t, err)
	assert.True(t, res.AlreadyPaid)
	assert.Empty(t, provider.calls)
}

func TestStartCheckout_ProviderError(t *testing.T) {
	provider := &mockCheckoutProvider{err: errors.New("stripe down")}

	_, err := newGate(&mockPaymentStore{}, provider).StartCheckout(t.Context(), "b1", "Demo", "user-1")
	assert.Error(t, err)
}

func TestStartCheckout_PendingInsertFailureStillReturnsURL(t *testing.T) {
	payments := &mockPaymentStore{createErr: errors.New("db down")}

	res, err := newGate(payments, &mockCheckoutProvider{}).StartCheckout(t.Context(), "b1", "Demo", "")

	require.NoError(t, err)
	assert.NotEmpty(t, res.URL)
}

func TestIsPaid_IgnoresPendingRows(t *testing.T) {
	payments := &mockPaymentStore{}
	provider := &mockCheckoutProvider{}
	gate := newGate(payments, provider)

	for i := 0; i < 3; i++ {
		_, err := gate.StartCheckout(t.Context(), "b1", "Demo", "user-1")
		require.NoError(t, err)
	}
	paid, err := gate.IsPaid(t.Context(), "b1")
	require.NoError(t, err)
	assert.False(t, paid)
	assert.Equal(t, 3, payments.count("b1", models.PaymentStatusPending))

	require.NoError(t, gate.CompleteCheckout(t.Context(), services.CompletedCheckout{
		SessionID:       "cs_test_2",
		PaymentIntentID: "pi_1",
		BuildID:         "b1",
	}))

	paid, err = gate.IsPaid(t.Context(), "b1")
	require.NoError(t, err)
	assert.True(t, paid)
	assert.Equal(t, 1, payments.count("b1", models.PaymentStatusCompleted))
}

// Scenario C: the completion webhook arrives with no pending row on record.
func TestCompleteCheckout_InsertsWhenPendingMissing(t *testing.T) {
	payments := &mockPaymentStore{}
	gate := newGate(payments, &mockCheckoutProvider{})

	err := gate.CompleteCheckout(t.Context(), services.CompletedCheckout{
		SessionID:       "cs_live_9",
		PaymentIntentID: "pi_9",
		BuildID:         "b1",
		UserID:          "user-1",
	})
	require.NoError(t, err)

	require.Len(t, payments.payments, 1)
	p := payments.payments[0]
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.Equal(t, int64(280000), p.Amount)
	assert.Equal(t, "inr", p.Currency)
	assert.Equal(t, "pi_9", p.StripePaymentIntentID.String)

	paid, err := gate.IsPaid(t.Context(), "b1")
	require.NoError(t, err)
	assert.True(t, paid)
}

func TestCompleteCheckout_RequiresBuildID(t *testing.T) {
	err := newGate(&mockPaymentStore{}, &mockCheckoutProvider{}).CompleteCheckout(t.Context(), services.CompletedCheckout{SessionID: "cs"})
	assert.Error(t, err)
}

const checkoutCompletedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_42",
      "object": "checkout.session",
      "amount_total": 280000,
      "currency": "inr",
      "payment_intent": "pi_42",
      "metadata": {"build_id": "b1", "user_id": "user-1"}
    }
  }
}`

func signStripePayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeService_ParseWebhook_Verified(t *testing.T) {
	svc := services.NewStripeService("sk_test", "whsec_test")
	payload := []byte(checkoutCompletedEvent)

	event, err := svc.ParseWebhook(payload, signStripePayload("whsec_test", payload, time.Now()))
	require.NoError(t, err)

	done, ok, err := services.CompletedCheckoutFromEvent(event)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, services.CompletedCheckout{
		SessionID:       "cs_test_42",
		PaymentIntentID: "pi_42",
		BuildID:         "b1",
		UserID:          "user-1",
		Amount:          280000,
		Currency:        "inr",
	}, done)
}

func TestStripeService_ParseWebhook_BadSignature(t *testing.T) {
	svc := services.NewStripeService("sk_test", "whsec_test")
	payload := []byte(checkoutCompletedEvent)

	_, err := svc.ParseWebhook(payload, signStripePayload("whsec_other", payload, time.Now()))
	assert.ErrorIs(t, err, services.ErrInvalidSignature)
}

func TestStripeService_ParseWebhook_NoSecret(t *testing.T) {
	svc := services.NewStripeService("sk_test", "")

	event, err := svc.ParseWebhook([]byte(checkoutCompletedEvent), "")
	require.NoError(t, err)

	done, ok, err := services.CompletedCheckoutFromEvent(event)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b1", done.BuildID)
}

func TestCompletedCheckoutFromEvent_IgnoresOtherTypes(t *testing.T) {
	svc := services.NewStripeService("sk_test", "")
	event, err := svc.ParseWebhook([]byte(`{"id":"evt_2","type":"payment_intent.created","data":{"object":{}}}`), "")
	require.NoError(t, err)

	_, ok, err := services.CompletedCheckoutFromEvent(event)
	assert.NoError(t, err)
	assert.False(t, ok)
}
