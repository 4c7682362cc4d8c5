package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/boardgames/game/service"
)

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Hour)
	require.NoError(t, err)
	verifier, err := NewVerifier("secret")
	require.NoError(t, err)

	token, err := issuer.Issue(42, "alice", "sess-1")
	require.NoError(t, err)

	id, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.PlayerID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "sess-1", id.SessionID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), id.ExpiresAt, 5*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	issuer, err := NewIssuer("secret", time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	verifier, err := NewVerifier("secret")
	require.NoError(t, err)

	token, err := issuer.Issue(42, "alice", "")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, service.ErrCredentialExpired)
	assert.NotErrorIs(t, err, service.ErrUnauthorized)
}

func TestVerifyRejects(t *testing.T) {
	verifier, err := NewVerifier("secret")
	require.NoError(t, err)
	other, err := NewIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	wrongKey, err := other.Issue(42, "alice", "")
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "42"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", "  "},
		{"garbage", "not-a-token"},
		{"wrong key", wrongKey},
		{"non numeric subject", noSubject},
		{"missing expiry", noExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			assert.ErrorIs(t, err, service.ErrUnauthorized)
		})
	}
}

func TestConstructorsRequireSecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
	_, err = NewIssuer(" ", time.Hour)
	assert.Error(t, err)
	_, err = NewIssuer("secret", 0)
	assert.Error(t, err)
}
