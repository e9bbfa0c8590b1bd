package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/devmoa/authkit/session"
)

// Login authenticates an email/password pair for a device.
//
// Unknown emails and wrong passwords both fail with ErrInvalidCredentials.
// A correct password resolves to SUCCESS only when the account's email is
// verified and the device already holds a session; otherwise a passcode is
// dispatched and the result is NEED_OTP with no tokens.
func (e *Engine) Login(ctx context.Context, email, pass string, device DeviceInfo) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	if email == "" || pass == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, AuditEvent{
				EventType: "login",
				DeviceID:  device.DeviceID,
				Error:     "unknown email",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := e.passwords.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditEvent{
			EventType: "login",
			UserID:    user.ID,
			DeviceID:  device.DeviceID,
			Error:     "password mismatch",
		})
		return nil, ErrInvalidCredentials
	}

	e.maybeUpgradeHash(ctx, user, pass)

	var trusted bool
	if user.EmailVerified {
		switch _, err := e.sessions.GetByDevice(ctx, user.ID, device.DeviceID); {
		case err == nil:
			trusted = true
		case errors.Is(err, redis.Nil):
			trusted = false
		case errors.Is(err, session.ErrSessionCorrupt):
			trusted = false
		default:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if !trusted {
		if _, err := e.issueOtp(ctx, user); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginNeedOtp)
		e.emitAudit(ctx, AuditEvent{
			EventType: "login",
			UserID:    user.ID,
			DeviceID:  device.DeviceID,
			Success:   true,
			Metadata:  map[string]string{"result": "need_otp"},
		})
		return &AuthResult{Status: StatusNeedOtp}, nil
	}

	result, err := e.issueSessionTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: "login",
		UserID:    user.ID,
		DeviceID:  device.DeviceID,
		Success:   true,
	})

	return result, nil
}

// maybeUpgradeHash rehashes the password with current cost parameters after
// a successful verification. Failures only warn; login already succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user User, pass string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}

	needs, err := e.passwords.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := e.passwords.Hash(pass)
	if err != nil {
		e.warnf("password rehash failed for user %s: %v", user.ID, err)
		return
	}
	if err := e.users.Save(ctx, user.WithPasswordHash(rehashed)); err != nil {
		e.warnf("password rehash save failed for user %s: %v", user.ID, err)
	}
}
