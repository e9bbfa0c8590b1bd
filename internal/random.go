package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const (
	sessionIDSize     = 16
	refreshSecretSize = 32
	refreshTokenSize  = sessionIDSize + refreshSecretSize
)

// SessionID is the random identifier half of a refresh token.
type SessionID [sessionIDSize]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	if _, err := rand.Read(sid[:]); err != nil {
		return SessionID{}, err
	}
	return sid, nil
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, errors.New("invalid session id encoding")
	}
	if len(raw) != sessionIDSize {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}

func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return [refreshSecretSize]byte{}, err
	}
	return secret, nil
}

// HashRefreshSecret is the only form of the secret that is ever persisted.
func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs a session id and secret into the opaque token
// handed to clients: base64url over 48 raw bytes.
func EncodeRefreshToken(sessionID string, secret [refreshSecretSize]byte) (string, error) {
	sid, err := ParseSessionID(sessionID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenSize]byte
	copy(raw[:sessionIDSize], sid[:])
	copy(raw[sessionIDSize:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, errors.New("invalid refresh token encoding")
	}
	if len(raw) != refreshTokenSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var sid SessionID
	copy(sid[:], raw[:sessionIDSize])
	copy(secret[:], raw[sessionIDSize:])

	return sid.String(), secret, nil
}

// NewOTP draws a numeric one-time passcode with uniformly distributed digits.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("otp digits out of range")
	}

	var b strings.Builder
	b.Grow(digits)

	ten := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
