package authkit

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/devmoa/authkit/internal"
)

// Register creates a PENDING account and dispatches the first verification
// passcode. No session or tokens are issued until the passcode is confirmed.
func (e *Engine) Register(ctx context.Context, email, pass string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidCredentials
	}
	if len(pass) < e.config.Password.MinLength {
		return ErrWeakPassword
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := e.passwords.Hash(pass)
	if err != nil {
		return err
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	nickname, err := randomNickname()
	if err != nil {
		return err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
		Status:       UserPending,
		CreatedAt:    e.now().Unix(),
	}.WithOtp(code, e.now().Add(e.config.OTP.TTL))

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
		}
		return err
	}

	if err := e.mailer.Send(ctx, email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrMailerUnavailable, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricOtpIssued)
	e.emitAudit(ctx, AuditEvent{
		EventType: "register",
		UserID:    user.ID,
		Success:   true,
	})

	return nil
}

// CheckEmailDuplicate reports whether an account already exists for the
// email.
func (e *Engine) CheckEmailDuplicate(ctx context.Context, email string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}

	_, err := e.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var (
	nicknameAdjectives = []string{
		"brisk", "calm", "eager", "keen", "mellow", "nimble", "sunny", "vivid",
	}
	nicknameAnimals = []string{
		"falcon", "heron", "lynx", "marten", "otter", "puffin", "stoat", "wren",
	}
)

// randomNickname builds a placeholder display name for new accounts, e.g.
// "nimble-otter-4821". Users rename themselves later.
func randomNickname() (string, error) {
	adjective, err := pick(nicknameAdjectives)
	if err != nil {
		return "", err
	}
	animal, err := pick(nicknameAnimals)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", adjective, animal, n.Int64()), nil
}

func pick(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[n.Int64()], nil
}
