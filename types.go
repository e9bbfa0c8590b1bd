package authkit

import (
	"context"
	"time"

	"github.com/devmoa/authkit/session"
)

// AuthStatus reports how an authentication attempt resolved.
type AuthStatus string

const (
	// StatusSuccess means tokens were issued.
	StatusSuccess AuthStatus = "SUCCESS"
	// StatusNeedOtp means a passcode was dispatched and the caller must
	// complete the step-up before tokens are issued.
	StatusNeedOtp AuthStatus = "NEED_OTP"
	// StatusNeedSocialRegister means the social identity is valid but no
	// local account is linked to it yet.
	StatusNeedSocialRegister AuthStatus = "NEED_SOCIAL_REGISTER"
)

// AuthResult is the uniform outcome of login, device registration, refresh,
// and the social flows. Token fields are empty unless Status is SUCCESS.
type AuthResult struct {
	Status AuthStatus `json:"status"`

	AccessToken string `json:"accessToken,omitempty"`
	// ExpiresIn is the absolute expiry of AccessToken in unix seconds.
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// UserStatus tracks account lifecycle. Accounts start PENDING and become
// ACTIVE once the email passcode is confirmed; the transition never reverses.
type UserStatus uint8

const (
	UserPending UserStatus = iota
	UserActive
)

// User is an immutable account snapshot. State changes go through the With
// methods, which return a modified copy; the engine persists copies through
// the UserStore.
type User struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash string

	// Provider and ProviderID identify a linked social account. Both are
	// empty for local email/password accounts.
	Provider   string
	ProviderID string

	// OtpCode and OtpExpiresAt hold the single active passcode challenge.
	// They are always set and cleared together.
	OtpCode      string
	OtpExpiresAt int64

	EmailVerified bool
	Status        UserStatus
	CreatedAt     int64
}

// WithOtp returns a copy carrying a fresh passcode challenge. Any previous
// challenge is superseded.
func (u User) WithOtp(code string, expiresAt time.Time) User {
	u.OtpCode = code
	u.OtpExpiresAt = expiresAt.Unix()
	return u
}

// WithClearedOtp returns a copy with no active passcode challenge.
func (u User) WithClearedOtp() User {
	u.OtpCode = ""
	u.OtpExpiresAt = 0
	return u
}

// WithStatus returns a copy with the given status. An ACTIVE account never
// regresses to PENDING; such transitions return the receiver unchanged.
func (u User) WithStatus(status UserStatus) User {
	if u.Status == UserActive && status == UserPending {
		return u
	}
	u.Status = status
	return u
}

// WithEmailVerified returns a copy with the email marked verified.
func (u User) WithEmailVerified() User {
	u.EmailVerified = true
	return u
}

// WithPasswordHash returns a copy with a replaced password hash.
func (u User) WithPasswordHash(hash string) User {
	u.PasswordHash = hash
	return u
}

// DeviceInfo identifies the client device in login and device flows.
type DeviceInfo struct {
	DeviceID    string
	DeviceModel string
	DeviceOS    string
}

// Device is one entry in a user's trusted device listing.
type Device struct {
	DeviceID    string    `json:"deviceId"`
	DeviceModel string    `json:"deviceModel,omitempty"`
	DeviceOS    string    `json:"deviceOs,omitempty"`
	Current     bool      `json:"current"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SocialIdentity is a provider-verified identity handed to the social flows.
// Token exchange with the provider happens outside the engine.
type SocialIdentity struct {
	Provider  string
	SubjectID string
	Email     string
	Nickname  string
}

// UserStore is the persistence contract the host application implements.
// Lookups that find nothing must return ErrUserNotFound; Create must return
// ErrDuplicateEmail when the email is taken.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (User, error)
	Create(ctx context.Context, user User) error
	Save(ctx context.Context, user User) error
}

// Mailer delivers passcodes. Implementations own templating and transport.
type Mailer interface {
	Send(ctx context.Context, email, code string) error
}

// Credential is the authenticated caller produced by Validate: the account
// plus the live session of the device the token was minted for.
type Credential struct {
	User    User
	Session *session.Session
}

// RouteMode selects guard behavior per route.
type RouteMode uint8

const (
	// RoutePublic attaches a credential when a valid token is present but
	// never rejects the request.
	RoutePublic RouteMode = iota
	// RouteGuarded rejects requests without a valid token and live session.
	RouteGuarded
)
