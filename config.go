package authkit

import (
	"errors"
	"time"
)

// Config is the full engine configuration tree. Zero values are not usable;
// start from DefaultConfig and override what the deployment needs.
type Config struct {
	JWT      JWTConfig
	OTP      OTPConfig
	Session  SessionConfig
	Password PasswordConfig
	Retry    RetryConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig carries access token signing parameters.
type JWTConfig struct {
	// Secret is the HS256 signing key, at least 32 bytes. No default.
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// OTPConfig controls passcode challenges.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

// SessionConfig controls the Redis session registry.
type SessionConfig struct {
	// KeyPrefix namespaces every session key.
	KeyPrefix string
	// RefreshTTL bounds session (and refresh token) lifetime. Rotation
	// renews it.
	RefreshTTL time.Duration
}

// PasswordConfig carries argon2id cost parameters plus engine-level
// password policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MinLength is enforced at registration, in bytes of the raw password.
	MinLength int
	// UpgradeOnLogin rehashes stored passwords with current parameters
	// after a successful login when the stored hash is weaker.
	UpgradeOnLogin bool
}

// RetryConfig throttles OTP re-delivery per email.
type RetryConfig struct {
	EnableThrottle bool
	MaxPerWindow   int
	Window         time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under backpressure instead of blocking the
	// calling flow. Drops are counted and exported.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a production-leaning baseline. The JWT secret is
// intentionally absent and must be provided.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL: 15 * time.Minute,
			Leeway:    30 * time.Second,
		},
		OTP: OTPConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
		},
		Session: SessionConfig{
			KeyPrefix:  "ak",
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Retry: RetryConfig{
			EnableThrottle: true,
			MaxPerWindow:   5,
			Window:         10 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.Secret) < 32 {
		return errors.New("config: JWT secret must be at least 32 bytes")
	}
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("config: JWT access TTL must be positive")
	}
	if cfg.OTP.Digits < 4 || cfg.OTP.Digits > 10 {
		return errors.New("config: OTP digits must be between 4 and 10")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("config: OTP TTL must be positive")
	}
	if cfg.Session.KeyPrefix == "" {
		return errors.New("config: session key prefix must not be empty")
	}
	if cfg.Session.RefreshTTL <= 0 {
		return errors.New("config: session refresh TTL must be positive")
	}
	if cfg.Password.MinLength < 1 {
		return errors.New("config: password min length must be positive")
	}
	if cfg.Retry.EnableThrottle {
		if cfg.Retry.MaxPerWindow < 1 {
			return errors.New("config: retry budget must be positive")
		}
		if cfg.Retry.Window <= 0 {
			return errors.New("config: retry window must be positive")
		}
	}
	return nil
}
