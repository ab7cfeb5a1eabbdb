package stripe_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/complyscan/complyscan/internal/billing/adapters/stripe"
	"github.com/complyscan/complyscan/internal/billing/domain"
)

func newAdapter(t *testing.T, secret string) domain.BillingAdapter {
	t.Helper()
	adapter, err := stripe.NewFactory().NewAdapter(domain.AdapterConfig{WebhookSecret: secret})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func signatureHeader(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signatureHeader("whsec_test", payload, time.Now().Unix()))

	if err := adapter.Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{"id":"evt_1"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signatureHeader("whsec_other", payload, time.Now().Unix()))

	if err := adapter.Verify(context.Background(), payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")

	err := adapter.Verify(context.Background(), []byte(`{}`), http.Header{})
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1767000000,
		"data": {"object": {
			"id": "cs_123",
			"amount_total": 999,
			"payment_status": "paid",
			"metadata": {"userId": "user_1", "credits": "50"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != domain.EventTypePaymentSucceeded {
		t.Fatalf("unexpected type %s", event.Type)
	}
	if event.UserID != "user_1" || event.Credits != 50 {
		t.Fatalf("unexpected grant %s/%d", event.UserID, event.Credits)
	}
	if event.ProviderSessionID != "cs_123" {
		t.Fatalf("unexpected session id %s", event.ProviderSessionID)
	}
	if event.AmountCents != 999 {
		t.Fatalf("unexpected amount %d", event.AmountCents)
	}
}

func TestParseRejectsMissingMetadata(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_123", "amount_total": 999, "metadata": {}}}
	}`)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestParseIgnoresUnknownEventTypes(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"object": {}}}`)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseSubscriptionDeleted(t *testing.T) {
	adapter := newAdapter(t, "whsec_test")
	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_9"}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != domain.EventTypeSubscriptionCancelled {
		t.Fatalf("unexpected type %s", event.Type)
	}
}
