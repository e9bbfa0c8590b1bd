package authkit

import (
	"context"
	"errors"

	"github.com/devmoa/authkit/internal/rate"
)

// VerifyEmail confirms the account-verification passcode. On success the
// account becomes ACTIVE with a verified email and the challenge is cleared.
// No tokens are issued; callers that also want a device session use
// RegisterDevice instead.
func (e *Engine) VerifyEmail(ctx context.Context, email, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := e.verifyAndClearOtp(ctx, &user, code); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: "verify_email",
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// RegisterDevice confirms a device-trust passcode and issues the device its
// first token pair. The account is marked verified as a side effect when it
// was still pending; the challenge is single use either way.
func (e *Engine) RegisterDevice(ctx context.Context, email, code string, device DeviceInfo) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := e.verifyAndClearOtp(ctx, &user, code); err != nil {
		return nil, err
	}

	result, err := e.issueSessionTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: "register_device",
		UserID:    user.ID,
		DeviceID:  device.DeviceID,
		Success:   true,
	})

	return result, nil
}

// RetryOtp issues a fresh passcode for the account, superseding any live
// challenge, within the per-email throttle budget.
func (e *Engine) RetryOtp(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	if err := e.retry.CheckRetry(ctx, email); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricOtpRateLimited)
			e.emitAudit(ctx, AuditEvent{
				EventType: "retry_otp",
				Error:     "rate limited",
			})
			return ErrRetryRateLimited
		}
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if _, err := e.issueOtp(ctx, user); err != nil {
		return err
	}

	e.emitAudit(ctx, AuditEvent{
		EventType: "retry_otp",
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// verifyAndClearOtp checks the challenge, then persists the user with the
// challenge cleared and the account activated. The cleared write makes
// every passcode single use.
func (e *Engine) verifyAndClearOtp(ctx context.Context, user *User, code string) error {
	if err := e.checkOtp(*user, code); err != nil {
		switch {
		case errors.Is(err, ErrOtpExpired):
			e.metricInc(MetricOtpExpired)
		case errors.Is(err, ErrOtpMismatch):
			e.metricInc(MetricOtpMismatch)
		}
		e.emitAudit(ctx, AuditEvent{
			EventType: "verify_otp",
			UserID:    user.ID,
			Error:     err.Error(),
		})
		return err
	}

	updated := user.WithClearedOtp().WithEmailVerified().WithStatus(UserActive)
	if err := e.users.Save(ctx, updated); err != nil {
		return err
	}
	*user = updated

	if err := e.retry.ResetRetry(ctx, user.Email); err != nil {
		e.warnf("retry budget reset failed for %s: %v", user.Email, err)
	}

	e.metricInc(MetricOtpVerified)
	return nil
}
