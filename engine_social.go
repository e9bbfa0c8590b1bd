package authkit

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// SocialLogin authenticates a provider-verified identity. When no local
// account is linked to the identity the result is NEED_SOCIAL_REGISTER and
// the caller completes SocialRegister; otherwise tokens are issued directly,
// since the provider already vouches for the identity.
func (e *Engine) SocialLogin(ctx context.Context, identity SocialIdentity, device DeviceInfo) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.users.FindByProvider(ctx, identity.Provider, identity.SubjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricSocialRegisterRequired)
			e.emitAudit(ctx, AuditEvent{
				EventType: "social_login",
				DeviceID:  device.DeviceID,
				Metadata:  map[string]string{"provider": identity.Provider, "result": "need_register"},
			})
			return &AuthResult{Status: StatusNeedSocialRegister}, nil
		}
		return nil, err
	}

	result, err := e.issueSessionTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: "social_login",
		UserID:    user.ID,
		DeviceID:  device.DeviceID,
		Success:   true,
		Metadata:  map[string]string{"provider": identity.Provider},
	})

	return result, nil
}

// SocialRegister creates an account linked to the social identity and issues
// the first token pair. The account starts ACTIVE with a verified email
// because the provider performed that verification.
func (e *Engine) SocialRegister(ctx context.Context, identity SocialIdentity, device DeviceInfo) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if _, err := e.users.FindByProvider(ctx, identity.Provider, identity.SubjectID); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	nickname := identity.Nickname
	if nickname == "" {
		generated, err := randomNickname()
		if err != nil {
			return nil, err
		}
		nickname = generated
	}

	user := User{
		ID:            uuid.NewString(),
		Email:         normalizeEmail(identity.Email),
		Nickname:      nickname,
		Provider:      identity.Provider,
		ProviderID:    identity.SubjectID,
		EmailVerified: true,
		Status:        UserActive,
		CreatedAt:     e.now().Unix(),
	}

	if err := e.users.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := e.issueSessionTokens(ctx, user, device)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSocialRegisterSuccess)
	e.emitAudit(ctx, AuditEvent{
		EventType: "social_register",
		UserID:    user.ID,
		DeviceID:  device.DeviceID,
		Success:   true,
		Metadata:  map[string]string{"provider": identity.Provider},
	})

	return result, nil
}
