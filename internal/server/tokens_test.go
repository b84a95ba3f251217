package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonathan/yecs/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(secret string) *TokenService {
	return NewTokenService(config.SessionConfig{Secret: secret, ExpirationHours: 24})
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService("test-secret")

	token, err := svc.GenerateToken("applicant-1")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "applicant-1", claims.GetIdentity())
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.False(t, claims.Anonymous)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_IssueAnonymous(t *testing.T) {
	svc := newTestTokenService("test-secret")
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	issued, err := svc.IssueAnonymous()
	require.NoError(t, err)
	assert.Len(t, issued.Identity, 36)
	assert.Equal(t, now.Add(24*time.Hour), issued.ExpiresAt)

	claims, err := svc.ValidateToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Identity, claims.Subject)
	assert.True(t, claims.Anonymous)
}

func TestTokenService_EmptyIdentity(t *testing.T) {
	_, err := newTestTokenService("s").GenerateToken("")
	assert.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService("test-secret")
	issuedAt := time.Now().Add(-48 * time.Hour)
	svc.now = func() time.Time { return issuedAt }
	token, err := svc.GenerateToken("applicant-1")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestTokenService_Rejects(t *testing.T) {
	svc := newTestTokenService("test-secret")
	good, err := svc.GenerateToken("applicant-1")
	require.NoError(t, err)

	otherSecret, err := newTestTokenService("other-secret").GenerateToken("applicant-1")
	require.NoError(t, err)

	now := time.Now()
	foreignIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "applicant-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:  tokenIssuer,
		Subject: "applicant-1",
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"wrong secret":   otherSecret,
		"foreign issuer": foreignIssuer,
		"no subject":     noSubject,
		"alg none":       unsigned,
		"tampered":       good[:len(good)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func TestTokenService_AsTokenValidator(t *testing.T) {
	svc := newTestTokenService("test-secret")
	token, err := svc.GenerateToken("applicant-9")
	require.NoError(t, err)

	claims, err := svc.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "applicant-9", claims.GetIdentity())

	_, err = svc.AsTokenValidator().ValidateToken("bad")
	assert.Error(t, err)
}
