package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid stripe signature")

type StripeService struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey}
}

func (s *StripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.BuildID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(p.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(productName(p.AppName)),
					Description: stripe.String("Android and iOS build files for " + productName(p.AppName)),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("build_id", p.BuildID)
	if p.UserID != "" {
		params.AddMetadata("user_id", p.UserID)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func productName(appName string) string {
	if appName == "" {
		return "App build"
	}
	return appName + " app build"
}

// ParseWebhook verifies the payload when a webhook secret is configured and
// decodes it either way.
func (s *StripeService) ParseWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	if s.WebhookKey == "" {
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return event, fmt.Errorf("failed to decode stripe event: %w", err)
		}
		return event, nil
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.WebhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return event, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// CompletedCheckoutFromEvent extracts the session of a
// checkout.session.completed event. ok is false for other event types.
func CompletedCheckoutFromEvent(event stripe.Event) (CompletedCheckout, bool, error) {
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return CompletedCheckout{}, false, nil
	}
	if event.Data == nil {
		return CompletedCheckout{}, true, fmt.Errorf("event %s has no data", event.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return CompletedCheckout{}, true, fmt.Errorf("failed to decode checkout session: %w", err)
	}

	done := CompletedCheckout{
		SessionID: sess.ID,
		BuildID:   sess.Metadata["build_id"],
		UserID:    sess.Metadata["user_id"],
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
	}
	if done.BuildID == "" {
		done.BuildID = sess.ClientReferenceID
	}
	if sess.PaymentIntent != nil {
		done.PaymentIntentID = sess.PaymentIntent.ID
	}
	return done, true, nil
}
