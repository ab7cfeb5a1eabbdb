package webhook_test

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

	"github.com/complyscan/complyscan/internal/billing/adapters"
	"github.com/complyscan/complyscan/internal/billing/adapters/stripe"
	billingdomain "github.com/complyscan/complyscan/internal/billing/domain"
	"github.com/complyscan/complyscan/internal/billing/webhook"
	"github.com/complyscan/complyscan/internal/config"
	"github.com/complyscan/complyscan/internal/observability/metrics"
	"go.uber.org/zap"
)

type stubBilling struct {
	events []*billingdomain.GrantEvent
}

func (s *stubBilling) ProcessEvent(ctx context.Context, event *billingdomain.GrantEvent) (bool, error) {
	s.events = append(s.events, event)
	return true, nil
}

func (s *stubBilling) SyncFromProvider(ctx context.Context, userID string) (billingdomain.SyncResult, error) {
	return billingdomain.SyncResult{}, nil
}

func newService(t *testing.T, secret string) (billingdomain.WebhookService, *stubBilling) {
	t.Helper()

	billingSvc := &stubBilling{}
	svc := webhook.NewService(webhook.Params{
		Log: zap.NewNop(),
		Cfg: config.Config{
			Billing: config.BillingConfig{StripeWebhookSecret: secret},
		},
		Metrics:    metrics.NewNop(),
		Adapters:   adapters.NewRegistry(stripe.NewFactory()),
		BillingSvc: billingSvc,
	})
	return svc, billingSvc
}

func signedHeaders(secret string, payload []byte) http.Header {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func TestIngestWebhookAppliesCheckoutEvent(t *testing.T) {
	svc, billingSvc := newService(t, "whsec_test")

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"amount_total": 999,
			"payment_status": "paid",
			"metadata": {"userId": "user_1", "credits": "50"}
		}}
	}`)

	applied, err := svc.IngestWebhook(context.Background(), "stripe", payload, signedHeaders("whsec_test", payload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !applied {
		t.Fatalf("expected event to be applied")
	}
	if len(billingSvc.events) != 1 {
		t.Fatalf("expected 1 processed event, got %d", len(billingSvc.events))
	}
	if billingSvc.events[0].UserID != "user_1" || billingSvc.events[0].Credits != 50 {
		t.Fatalf("unexpected event %+v", billingSvc.events[0])
	}
}

func TestIngestWebhookRejectsBadSignature(t *testing.T) {
	svc, billingSvc := newService(t, "whsec_test")

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{}}}`)
	_, err := svc.IngestWebhook(context.Background(), "stripe", payload, signedHeaders("whsec_wrong", payload))
	if !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(billingSvc.events) != 0 {
		t.Fatalf("unverified payload must never reach the reconciler")
	}
}

func TestIngestWebhookIgnoresUnhandledTypes(t *testing.T) {
	svc, billingSvc := newService(t, "whsec_test")

	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	applied, err := svc.IngestWebhook(context.Background(), "stripe", payload, signedHeaders("whsec_test", payload))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if applied {
		t.Fatalf("ignored event must not be applied")
	}
	if len(billingSvc.events) != 0 {
		t.Fatalf("ignored event must not reach the reconciler")
	}
}

func TestIngestWebhookRejectsUnknownProvider(t *testing.T) {
	svc, _ := newService(t, "whsec_test")

	_, err := svc.IngestWebhook(context.Background(), "paypal", []byte(`{}`), http.Header{})
	if !errors.Is(err, billingdomain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
