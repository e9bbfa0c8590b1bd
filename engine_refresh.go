package authkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/devmoa/authkit/internal"
	"github.com/devmoa/authkit/session"
)

// Refresh rotates a refresh token and mints a new access token bound to the
// session's user and device.
//
// Rotation is a compare-and-swap: of two concurrent refreshes with the same
// token exactly one wins. The loser, and any holder of an already-rotated
// token, gets ErrSessionNotFound, and the session is revoked so the winner's
// token dies too. A stolen-then-reused token therefore burns the session.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	sessionID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrSessionNotFound
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, err
	}

	sess, err := e.sessions.Rotate(
		ctx,
		sessionID,
		internal.HashRefreshSecret(secret),
		internal.HashRefreshSecret(nextSecret),
		e.config.Session.RefreshTTL,
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, AuditEvent{
				EventType: "refresh",
				Error:     "token reuse detected, session revoked",
				Metadata:  map[string]string{"session_id": sessionID},
			})
			return nil, ErrSessionNotFound
		case errors.Is(err, redis.Nil):
			e.metricInc(MetricRefreshFailure)
			return nil, ErrSessionNotFound
		case errors.Is(err, session.ErrSessionCorrupt):
			e.metricInc(MetricRefreshFailure)
			return nil, ErrSessionNotFound
		default:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	accessToken, expiresAt, err := e.tokens.CreateAccess(sess.UserID, sess.DeviceID)
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := internal.EncodeRefreshToken(sessionID, nextSecret)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: "refresh",
		UserID:    sess.UserID,
		DeviceID:  sess.DeviceID,
		Success:   true,
	})

	return &AuthResult{
		Status:       StatusSuccess,
		AccessToken:  accessToken,
		ExpiresIn:    expiresAt,
		RefreshToken: newRefreshToken,
	}, nil
}
