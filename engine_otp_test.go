package authkit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerifyEmailActivatesAccount(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "alice@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.engine.VerifyEmail(ctx, "alice@example.com", env.mailer.code("alice@example.com")); err != nil {
		t.Fatalf("verify email: %v", err)
	}

	user, err := env.store.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !user.EmailVerified || user.Status != UserActive {
		t.Fatalf("expected verified ACTIVE account, got verified=%v status=%d", user.EmailVerified, user.Status)
	}
	if user.OtpCode != "" || user.OtpExpiresAt != 0 {
		t.Fatalf("challenge must be cleared after use")
	}
}

func TestVerifyEmailExpiredBeatsMatch(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "bob@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := env.mailer.code("bob@example.com")

	advanceClock(env, 10*time.Minute)

	// The digits are right; expiry must still win.
	if err := env.engine.VerifyEmail(ctx, "bob@example.com", code); !errors.Is(err, ErrOtpExpired) {
		t.Fatalf("expected ErrOtpExpired, got %v", err)
	}
	if got := env.engine.metrics.Value(MetricOtpExpired); got != 1 {
		t.Fatalf("expected 1 expired counted, got %d", got)
	}
}

func TestVerifyEmailMismatch(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "carol@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}

	wrong := "000000"
	if env.mailer.code("carol@example.com") == wrong {
		wrong = "000001"
	}
	if err := env.engine.VerifyEmail(ctx, "carol@example.com", wrong); !errors.Is(err, ErrOtpMismatch) {
		t.Fatalf("expected ErrOtpMismatch, got %v", err)
	}
}

func TestPasscodeSingleUse(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "dave@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	code := env.mailer.code("dave@example.com")

	if err := env.engine.VerifyEmail(ctx, "dave@example.com", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, "dave@example.com", code); !errors.Is(err, ErrOtpMismatch) {
		t.Fatalf("expected replayed passcode to fail, got %v", err)
	}
}

func TestVerifyEmailUnknownUser(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()

	if err := env.engine.VerifyEmail(context.Background(), "ghost@example.com", "123456"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterDeviceIssuesTokensAndSession(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	result := registerAndTrust(t, env, "erin@example.com", "some-long-password", testDevice)

	user, err := env.store.FindByEmail(ctx, "erin@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !user.EmailVerified || user.Status != UserActive {
		t.Fatalf("device registration must also activate a pending account")
	}

	cred, err := env.engine.Validate(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cred.Session.DeviceID != testDevice.DeviceID {
		t.Fatalf("session bound to wrong device: %s", cred.Session.DeviceID)
	}
	if cred.Session.DeviceModel != testDevice.DeviceModel || cred.Session.DeviceOS != testDevice.DeviceOS {
		t.Fatalf("device metadata not persisted on the session")
	}
}

func TestRetryOtpSupersedesPriorCode(t *testing.T) {
	env, done := newTestEngine(t, testConfig())
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "frank@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	oldCode := env.mailer.code("frank@example.com")

	if err := env.engine.RetryOtp(ctx, "frank@example.com"); err != nil {
		t.Fatalf("retry otp: %v", err)
	}
	newCode := env.mailer.code("frank@example.com")
	if newCode == oldCode {
		t.Fatalf("expected a fresh passcode")
	}

	if err := env.engine.VerifyEmail(ctx, "frank@example.com", oldCode); !errors.Is(err, ErrOtpMismatch) {
		t.Fatalf("superseded passcode must fail, got %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, "frank@example.com", newCode); err != nil {
		t.Fatalf("fresh passcode must verify: %v", err)
	}
}

func TestRetryOtpThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxPerWindow = 2
	env, done := newTestEngine(t, cfg)
	defer done()
	ctx := context.Background()

	if err := env.engine.Register(ctx, "grace@example.com", "some-long-password"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := env.engine.RetryOtp(ctx, "grace@example.com"); err != nil {
		t.Fatalf("first retry: %v", err)
	}
	if err := env.engine.RetryOtp(ctx, "grace@example.com"); err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if err := env.engine.RetryOtp(ctx, "grace@example.com"); !errors.Is(err, ErrRetryRateLimited) {
		t.Fatalf("expected ErrRetryRateLimited, got %v", err)
	}
	if got := env.engine.metrics.Value(MetricOtpRateLimited); got != 1 {
		t.Fatalf("expected 1 throttle hit counted, got %d", got)
	}
}
