package authkit

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike so callers cannot probe which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateEmail is returned when registering an email that already
	// has an account.
	ErrDuplicateEmail = errors.New("duplicate email")

	// ErrUserNotFound is returned by OTP flows addressed at an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrOtpExpired is returned when a passcode is past its expiry, even if
	// the digits would have matched.
	ErrOtpExpired = errors.New("otp expired")

	// ErrOtpMismatch is returned when a live passcode does not match.
	ErrOtpMismatch = errors.New("otp mismatch")

	// ErrSessionNotFound is returned when a refresh token or device does not
	// resolve to a live session. Rotated-away and reused tokens fail with
	// this error as well.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenInvalid is returned for access tokens that fail signature,
	// structure, or expiry validation.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrDeviceConflict is returned when a device tries to remove itself
	// through the remove-other-device flow.
	ErrDeviceConflict = errors.New("device conflict")

	// ErrUnauthorized is returned when a structurally valid access token no
	// longer maps to a live user or session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWeakPassword is returned when a registration password is below the
	// configured minimum length.
	ErrWeakPassword = errors.New("weak password")

	// ErrRetryRateLimited is returned when OTP re-delivery exceeds the
	// configured per-email budget.
	ErrRetryRateLimited = errors.New("otp retry rate limited")

	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrRedisUnavailable wraps transport-level Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")

	// ErrMailerUnavailable wraps OTP delivery failures.
	ErrMailerUnavailable = errors.New("mailer unavailable")
)
