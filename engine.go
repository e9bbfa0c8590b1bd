package authkit

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/devmoa/authkit/internal"
	"github.com/devmoa/authkit/internal/rate"
	"github.com/devmoa/authkit/jwt"
	"github.com/devmoa/authkit/password"
	"github.com/devmoa/authkit/session"
)

// Engine orchestrates the authentication flows. Build one through the
// Builder; a zero Engine is not usable. All methods are safe for concurrent
// use once built.
type Engine struct {
	config    Config
	users     UserStore
	mailer    Mailer
	passwords *password.Argon2
	tokens    *jwt.Manager
	sessions  *session.Store
	retry     *rate.Limiter
	audit     *auditDispatcher
	metrics   *Metrics
	warn      func(format string, args ...any)

	now func() time.Time
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports events dropped under dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	event.Timestamp = e.now()
	e.audit.Emit(ctx, event)
}

func (e *Engine) warnf(format string, args ...any) {
	if e.warn != nil {
		e.warn(format, args...)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issueOtp stamps a fresh passcode challenge onto the user, persists it,
// and dispatches the code. Any previous challenge is superseded.
func (e *Engine) issueOtp(ctx context.Context, user User) (User, error) {
	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return user, err
	}

	user = user.WithOtp(code, e.now().Add(e.config.OTP.TTL))
	if err := e.users.Save(ctx, user); err != nil {
		return user, err
	}

	if err := e.mailer.Send(ctx, user.Email, code); err != nil {
		return user, fmt.Errorf("%w: %v", ErrMailerUnavailable, err)
	}

	e.metricInc(MetricOtpIssued)
	return user, nil
}

// checkOtp verifies a passcode against the user's active challenge. Expiry
// is checked before the match so an expired-but-correct code still fails
// with ErrOtpExpired. The comparison is constant time.
func (e *Engine) checkOtp(user User, code string) error {
	if user.OtpCode == "" || code == "" {
		return ErrOtpMismatch
	}
	if e.now().Unix() > user.OtpExpiresAt {
		return ErrOtpExpired
	}
	if subtle.ConstantTimeCompare([]byte(user.OtpCode), []byte(code)) != 1 {
		return ErrOtpMismatch
	}
	return nil
}

// issueSessionTokens upserts the device session and mints the token pair.
// The session is persisted before the access token is signed, so a signing
// failure never leaves tokens without a backing session.
func (e *Engine) issueSessionTokens(ctx context.Context, user User, device DeviceInfo) (*AuthResult, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, err
	}

	now := e.now().Unix()
	sess := &session.Session{
		ID:          sid.String(),
		UserID:      user.ID,
		DeviceID:    device.DeviceID,
		DeviceModel: device.DeviceModel,
		DeviceOS:    device.DeviceOS,
		RefreshHash: internal.HashRefreshSecret(secret),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sess, err = e.sessions.Upsert(ctx, sess, e.config.Session.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	accessToken, expiresAt, err := e.tokens.CreateAccess(user.ID, device.DeviceID)
	if err != nil {
		return nil, err
	}

	refreshToken, err := internal.EncodeRefreshToken(sess.ID, secret)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionCreated)

	return &AuthResult{
		Status:       StatusSuccess,
		AccessToken:  accessToken,
		ExpiresIn:    expiresAt,
		RefreshToken: refreshToken,
	}, nil
}
