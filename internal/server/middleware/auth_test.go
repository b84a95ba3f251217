package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator accepts a fixed set of tokens.
type testTokenValidator struct {
	validTokens map[string]string
}

func (v *testTokenValidator) ValidateToken(tokenString string) (IdentityGetter, error) {
	identity, ok := v.validTokens[tokenString]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return testClaims(identity), nil
}

type testClaims string

func (c testClaims) GetIdentity() string { return string(c) }

func newProtectedHandler(t *testing.T) (http.Handler, *string) {
	t.Helper()
	validator := &testTokenValidator{validTokens: map[string]string{
		"good-token":  "applicant-1",
		"empty-claim": "",
	}}
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := GetIdentity(r)
		require.NoError(t, err)
		seen = identity
		w.WriteHeader(http.StatusOK)
	})
	return AuthMiddleware(validator)(next), &seen
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handler, seen := newProtectedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workflow", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "applicant-1", *seen)
}

func TestAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	handler, seen := newProtectedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workflow", nil)
	req.Header.Set("Authorization", "bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "applicant-1", *seen)
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	handler, seen := newProtectedHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/workflow/insights/stream?token=good-token", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "applicant-1", *seen)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		target string
	}{
		{"missing header", "", "/api/workflow"},
		{"basic scheme", "Basic Zm9vOmJhcg==", "/api/workflow"},
		{"bearer without token", "Bearer", "/api/workflow"},
		{"extra parts", "Bearer good-token extra", "/api/workflow"},
		{"unknown token", "Bearer bad-token", "/api/workflow"},
		{"empty identity claim", "Bearer empty-claim", "/api/workflow"},
		{"bad header wins over query", "Basic x", "/api/workflow?token=good-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, seen := newProtectedHandler(t)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Empty(t, *seen)
		})
	}
}

func TestGetIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetIdentity(req)
	assert.ErrorIs(t, err, ErrNoIdentity)

	req = req.WithContext(context.WithValue(req.Context(), identityKey, 42))
	_, err = GetIdentity(req)
	assert.ErrorIs(t, err, ErrNoIdentity)

	req = req.WithContext(WithIdentity(context.Background(), "applicant-2"))
	identity, err := GetIdentity(req)
	require.NoError(t, err)
	assert.Equal(t, "applicant-2", identity)
}
