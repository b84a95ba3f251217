package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonathan/yecs/internal/config"
	"github.com/jonathan/yecs/internal/server/middleware"
)

// tokenIssuer is the iss claim of every session token.
const tokenIssuer = "yecs"

// Claims are the session token claims. The subject is the applicant identity.
type Claims struct {
	Anonymous bool `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// GetIdentity implements middleware.IdentityGetter.
func (c *Claims) GetIdentity() string {
	return c.Subject
}

// TokenService issues and validates session tokens.
type TokenService struct {
	config config.SessionConfig
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given configuration.
func NewTokenService(cfg config.SessionConfig) *TokenService {
	return &TokenService{config: cfg, now: time.Now}
}

// IssuedToken is a signed token and the identity it authenticates.
type IssuedToken struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueAnonymous creates a new random identity and a token for it.
func (s *TokenService) IssueAnonymous() (*IssuedToken, error) {
	identity := uuid.NewString()
	token, expiresAt, err := s.sign(identity, true)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, Identity: identity, ExpiresAt: expiresAt}, nil
}

// GenerateToken signs a token for an existing identity.
func (s *TokenService) GenerateToken(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("identity is empty")
	}
	token, _, err := s.sign(identity, false)
	return token, err
}

func (s *TokenService) sign(identity string, anonymous bool) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(time.Duration(s.config.ExpirationHours) * time.Hour)

	claims := &Claims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   identity,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt.Truncate(time.Second), nil
}

// ValidateToken validates a token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("token expired: %w", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("invalid token signature: %w", err)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("malformed token: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// AsTokenValidator adapts the service to middleware.TokenValidator.
func (s *TokenService) AsTokenValidator() middleware.TokenValidator {
	return tokenValidator{service: s}
}

type tokenValidator struct {
	service *TokenService
}

func (v tokenValidator) ValidateToken(tokenString string) (middleware.IdentityGetter, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
