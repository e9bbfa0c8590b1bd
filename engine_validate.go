package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Validate authenticates an access token and resolves it to a live
// credential. Signature or expiry failures map to ErrTokenInvalid; a valid
// token whose user or device session has since disappeared maps to
// ErrUnauthorized, so revoking a session cuts off its access tokens at the
// guard even before they expire.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Credential, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()

	claims, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, ErrTokenInvalid
	}

	user, err := e.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricValidateFailure)
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	sess, err := e.sessions.GetByDevice(ctx, user.ID, claims.DeviceID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.metricInc(MetricValidateFailure)
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	return &Credential{
		User:    user,
		Session: sess,
	}, nil
}
