package otpgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestBuildRequiresDependencies(t *testing.T) {
	cfg := testConfig(t)

	if _, err := New().WithConfig(cfg).WithNotifier(&capturingNotifier{}).Build(); err == nil {
		t.Fatal("expected error without identity provider")
	}
	if _, err := New().WithConfig(cfg).WithIdentityProvider(newFakeIdentityProvider()).Build(); err == nil {
		t.Fatal("expected error without notifier")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Lockout.MaxAttempts = 0

	_, err := New().
		WithConfig(cfg).
		WithIdentityProvider(newFakeIdentityProvider()).
		WithNotifier(&capturingNotifier{}).
		Build()
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildRejectsMissingSigningKey(t *testing.T) {
	cfg := DefaultConfig()

	_, err := New().
		WithConfig(cfg).
		WithIdentityProvider(newFakeIdentityProvider()).
		WithNotifier(&capturingNotifier{}).
		Build()
	if err == nil {
		t.Fatal("expected error without signing material")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	b := New().
		WithConfig(testConfig(t)).
		WithIdentityProvider(newFakeIdentityProvider()).
		WithNotifier(&capturingNotifier{})

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestEngineNotReadyBeforeBuild(t *testing.T) {
	var engine *Engine
	if _, err := engine.RequestCode(context.Background(), "alice", PurposeLoginVerification); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.VerifyCode(context.Background(), "alice", "123456", PurposeLoginVerification); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestRedisBackedEngineFullFlow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine, err := New().
		WithConfig(testConfig(t)).
		WithRedis(rdb).
		WithIdentityProvider(newFakeIdentityProvider("alice@example.com")).
		WithNotifier(notifier).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	code := notifier.lastCode(t)

	// The record and issuance counter landed in Redis.
	if !mr.Exists("ogc:login_verification:alice@example.com") {
		t.Fatal("expected code record in redis")
	}
	if !mr.Exists("ogi:login_verification:alice@example.com") {
		t.Fatal("expected issuance counter in redis")
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = engine.VerifyCode(ctx, "alice@example.com", wrong, PurposeLoginVerification)
	var invalid *InvalidCodeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCodeError, got %v", err)
	}

	result, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if result.Credential == "" || result.Tier != TierSession {
		t.Fatalf("unexpected result: %+v", result)
	}

	if mr.Exists("ogc:login_verification:alice@example.com") {
		t.Fatal("record not consumed from redis")
	}
}

func TestRedisBackedAlreadySent(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	engine, err := New().
		WithConfig(testConfig(t)).
		WithRedis(rdb).
		WithIdentityProvider(newFakeIdentityProvider("alice@example.com")).
		WithNotifier(&capturingNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}

	_, err = engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification)
	var already *AlreadySentError
	if !errors.As(err, &already) {
		t.Fatalf("expected AlreadySentError, got %v", err)
	}

	// Once Redis collects the record (lifetime plus retention grace), a new
	// request goes through.
	mr.FastForward(26 * time.Minute)
	if _, err := engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("request after expiry failed: %v", err)
	}
}

func TestAuditEventsFlow(t *testing.T) {
	ctx := context.Background()
	sink := NewChannelSink(64)

	engine, err := New().
		WithConfig(testConfig(t)).
		WithIdentityProvider(newFakeIdentityProvider("alice@example.com")).
		WithNotifier(&capturingNotifier{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	engine.Close()

	var sawRequest bool
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == "code_request" && event.Success && event.Identity == "alice@example.com" {
				sawRequest = true
			}
		default:
			if !sawRequest {
				t.Fatal("expected a successful code_request audit event")
			}
			return
		}
	}
}

func TestAuditSinkSurvivesLaterConfig(t *testing.T) {
	ctx := context.Background()
	sink := NewChannelSink(64)

	// WithConfig after WithAuditSink must not disable auditing.
	engine, err := New().
		WithAuditSink(sink).
		WithConfig(testConfig(t)).
		WithIdentityProvider(newFakeIdentityProvider("alice@example.com")).
		WithNotifier(&capturingNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := engine.RequestCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	engine.Close()

	select {
	case event := <-sink.Events():
		if event.EventType != "code_request" {
			t.Fatalf("unexpected first audit event %q", event.EventType)
		}
	default:
		t.Fatal("expected an audit event despite the config overwrite")
	}
}
