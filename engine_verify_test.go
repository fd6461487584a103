package otpgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func requestAndGetCode(t *testing.T, engine *Engine, notifier *capturingNotifier, identity string, purpose Purpose) string {
	t.Helper()

	if _, err := engine.RequestCode(context.Background(), identity, purpose); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	return notifier.lastCode(t)
}

func TestVerifyCodeMintsSessionCredential(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	result, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if result.Tier != TierSession {
		t.Fatalf("expected session tier, got %q", result.Tier)
	}
	if until := time.Until(result.ExpiresAt); until < 7*24*time.Hour-time.Minute || until > 7*24*time.Hour {
		t.Fatalf("session expiry out of range: %v", result.ExpiresAt)
	}

	claims, err := engine.Tokens().Verify(result.Credential, PurposeLoginVerification.String())
	if err != nil {
		t.Fatalf("credential does not verify: %v", err)
	}
	if claims.Identity != "alice@example.com" {
		t.Fatalf("credential bound to wrong identity: %q", claims.Identity)
	}
}

func TestVerifyCodeMintsIntermediateCredentialForReset(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposePasswordReset)

	result, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposePasswordReset)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if result.Tier != TierIntermediate {
		t.Fatalf("expected intermediate tier, got %q", result.Tier)
	}
	if until := time.Until(result.ExpiresAt); until > 15*time.Minute {
		t.Fatalf("intermediate expiry out of range: %v", result.ExpiresAt)
	}

	// A reset credential must not pass for a login check.
	if _, err := engine.Tokens().Verify(result.Credential, PurposeLoginVerification.String()); err == nil {
		t.Fatal("reset credential accepted for login purpose")
	}
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification); err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}

	// Replay of the consumed code is indistinguishable from never-sent.
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestVerifyCodeAttemptsAndLockout(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for want := 2; want >= 1; want-- {
		_, err := engine.VerifyCode(ctx, "alice@example.com", wrong, PurposeLoginVerification)
		var invalid *InvalidCodeError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidCodeError, got %v", err)
		}
		if invalid.AttemptsLeft != want {
			t.Fatalf("expected %d attempts left, got %d", want, invalid.AttemptsLeft)
		}
	}

	// The third miss locks the key.
	_, err := engine.VerifyCode(ctx, "alice@example.com", wrong, PurposeLoginVerification)
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.RetryAfter <= 0 || locked.RetryAfter > 15*time.Minute {
		t.Fatalf("retry-after out of range: %v", locked.RetryAfter)
	}
	if !errors.Is(err, ErrTooManyAttempts) {
		t.Fatal("LockedError must unwrap to ErrTooManyAttempts")
	}

	// The correct code is rejected too while the lock holds.
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification); !errors.As(err, &locked) {
		t.Fatalf("expected LockedError for correct code, got %v", err)
	}

	// A fresh send replaces the record and clears the lock.
	if _, err := engine.ResendCode(ctx, "alice@example.com", PurposeLoginVerification); err != nil {
		t.Fatalf("ResendCode failed: %v", err)
	}
	fresh := notifier.lastCode(t)
	if _, err := engine.VerifyCode(ctx, "alice@example.com", fresh, PurposeLoginVerification); err != nil {
		t.Fatalf("fresh code after lockout failed: %v", err)
	}
}

func TestVerifyCodeExpiredReportsExpiry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Codes[PurposeLoginVerification] = CodePolicy{
		Alphabet: AlphabetNumeric, Length: 6, TTL: 100 * time.Millisecond, Tier: TierSession,
	}
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, cfg, newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	// Record timestamps carry second granularity; wait until the expiry
	// second has fully passed.
	time.Sleep(2100 * time.Millisecond)

	_, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricVerifyExpired] != 1 {
		t.Fatalf("expected expired counter 1, got %d", snap.Counters[MetricVerifyExpired])
	}
}

func TestVerifyCodeWithoutRequest(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), &capturingNotifier{})

	if _, err := engine.VerifyCode(ctx, "alice@example.com", "123456", PurposeLoginVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyCodeShapeCheckDoesNotBurnAttempts(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	// Wrong length and wrong alphabet are caller bugs, rejected before the
	// store sees them.
	for _, bad := range []string{"12345", "1234567", "12345a", "abcdef", ""} {
		if _, err := engine.VerifyCode(ctx, "alice@example.com", bad, PurposeLoginVerification); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", bad, err)
		}
	}

	status, err := engine.CodeStatus(ctx, "alice@example.com", PurposeLoginVerification)
	if err != nil {
		t.Fatalf("CodeStatus failed: %v", err)
	}
	if status.Attempts != 0 {
		t.Fatalf("malformed submissions burned attempts: %d", status.Attempts)
	}

	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification); err != nil {
		t.Fatalf("valid code failed after shape rejections: %v", err)
	}
}

func TestVerifyCodePurposeIsolation(t *testing.T) {
	ctx := context.Background()
	notifier := &capturingNotifier{}
	engine := newTestEngine(t, testConfig(t), newFakeIdentityProvider("alice@example.com"), notifier)

	code := requestAndGetCode(t, engine, notifier, "alice@example.com", PurposeLoginVerification)

	// The login code presented under another purpose finds no record there.
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeEmailVerification); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across purposes, got %v", err)
	}

	// And the login record is untouched by that miss.
	if _, err := engine.VerifyCode(ctx, "alice@example.com", code, PurposeLoginVerification); err != nil {
		t.Fatalf("login code failed after cross-purpose probe: %v", err)
	}
}
