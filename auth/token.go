// Package auth issues and verifies the HS256 access tokens presented by
// players on the REST and websocket surfaces.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wricardo/boardgames/game/service"
)

const issuer = "boardgames"

// claims is the token body. Subject carries the numeric player id.
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Verifier validates access tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

var _ service.TokenVerifier = (*Verifier)(nil)

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify parses and validates the token. Expired tokens fail with
// service.ErrCredentialExpired; every other failure is
// service.ErrUnauthorized.
func (v *Verifier) Verify(token string) (*service.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", service.ErrUnauthorized)
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	playerID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil || playerID <= 0 {
		return nil, fmt.Errorf("%w: subject is not a player id", service.ErrUnauthorized)
	}

	return &service.Identity{
		PlayerID:  playerID,
		SessionID: parsed.SessionID,
		Username:  parsed.Username,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: token is expired", service.ErrCredentialExpired)
	}
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return fmt.Errorf("%w: token signature is invalid", service.ErrUnauthorized)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return fmt.Errorf("%w: token alg is invalid", service.ErrUnauthorized)
	}
	return fmt.Errorf("%w: token is invalid", service.ErrUnauthorized)
}

// Issuer signs access tokens. It is used by the token command for local
// play and by tests.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer whose tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for the player.
func (i *Issuer) Issue(playerID int64, username, sessionID string) (string, error) {
	if playerID <= 0 {
		return "", fmt.Errorf("player id must be positive")
	}
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(playerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		SessionID: sessionID,
		Username:  username,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
