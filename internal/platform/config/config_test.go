package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "sf-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "sf-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "sf-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Lifecycle.CancelTimeout != defaultCancelTimeout {
		t.Errorf("unexpected default cancel timeout: %s", cfg.Lifecycle.CancelTimeout)
	}
	if cfg.Lifecycle.SweepInterval != defaultSweepInterval {
		t.Errorf("unexpected default sweep interval: %s", cfg.Lifecycle.SweepInterval)
	}
	if cfg.Lifecycle.RefundGraceWindow != defaultRefundGraceWindow {
		t.Errorf("unexpected default refund grace window: %s", cfg.Lifecycle.RefundGraceWindow)
	}
	if cfg.Mail.Sender != defaultMailSender {
		t.Errorf("unexpected default mail sender: %s", cfg.Mail.Sender)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_FIREBASE_PROJECT_ID":          "sf-prod",
		"API_FIRESTORE_PROJECT_ID":         "sf-fire",
		"API_PUBSUB_ORDER_EVENTS_TOPIC":    "order-events",
		"API_PSP_STRIPE_API_KEY":           "sk_test_123",
		"API_PSP_PAYPAL_CLIENT_ID":         "paypal-client",
		"API_PSP_PAYTM_MERCHANT_ID":        "paytm-mid",
		"API_MAIL_DOMAIN":                  "mg.shopfusion.example",
		"API_MAIL_API_KEY":                 "key-abc",
		"API_MAIL_SENDER":                  "Orders <orders@shopfusion.example>",
		"API_LIFECYCLE_CANCEL_TIMEOUT":     "30m",
		"API_LIFECYCLE_SWEEP_INTERVAL":     "45s",
		"API_LIFECYCLE_SWEEP_BATCH":        "250",
		"API_LIFECYCLE_REFUND_GRACE":       "24h",
		"API_SECURITY_ENVIRONMENT":         "prod",
		"API_IDEMPOTENCY_HEADER":           "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":              "48h",
		"API_IDEMPOTENCY_CLEANUP_INTERVAL": "30m",
		"API_IDEMPOTENCY_CLEANUP_BATCH":    "500",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "sf-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "sf-prod" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.OrderEventsTopic != "order-events" {
		t.Errorf("unexpected order events topic %s", cfg.PubSub.OrderEventsTopic)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_123" {
		t.Errorf("unexpected stripe key %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.PaytmMerchantID != "paytm-mid" {
		t.Errorf("unexpected paytm merchant id %s", cfg.PSP.PaytmMerchantID)
	}
	if cfg.Mail.Domain != "mg.shopfusion.example" {
		t.Errorf("unexpected mail domain %s", cfg.Mail.Domain)
	}
	if cfg.Mail.Sender != "Orders <orders@shopfusion.example>" {
		t.Errorf("unexpected mail sender %s", cfg.Mail.Sender)
	}
	if cfg.Lifecycle.CancelTimeout != 30*time.Minute {
		t.Errorf("unexpected cancel timeout %s", cfg.Lifecycle.CancelTimeout)
	}
	if cfg.Lifecycle.SweepInterval != 45*time.Second {
		t.Errorf("unexpected sweep interval %s", cfg.Lifecycle.SweepInterval)
	}
	if cfg.Lifecycle.SweepBatchSize != 250 {
		t.Errorf("unexpected sweep batch size %d", cfg.Lifecycle.SweepBatchSize)
	}
	if cfg.Lifecycle.RefundGraceWindow != 24*time.Hour {
		t.Errorf("unexpected refund grace window %s", cfg.Lifecycle.RefundGraceWindow)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Idempotency.Header != "X-Idem-Key" {
		t.Errorf("unexpected idempotency header %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.CleanupBatchSize != 500 {
		t.Errorf("unexpected cleanup batch size %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=sf-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "sf-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadRejectsInvalidLifecycle(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "sf-dev",
		"API_LIFECYCLE_CANCEL_TIMEOUT": "-5m",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, field := range verr.Fields() {
		if field == "Lifecycle.CancelTimeout" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Lifecycle.CancelTimeout in invalid fields, got %v", verr.Fields())
	}
}
