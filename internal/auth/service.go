package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/medistock/medistock/internal/shared"
)

const issuer = "medistock"

// Claims represents JWT claims carrying the subject snapshot taken at login.
type Claims struct {
	PharmacyID string `json:"pharmacy_id,omitempty"`
	Role       string `json:"role"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 tokens signed with a single secret.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret string) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: token secret is not configured")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for subject valid for ttl.
func (s *TokenService) Issue(subject Subject, ttl time.Duration) (string, error) {
	if subject.UserID <= 0 {
		return "", errors.New("auth: subject user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}
	now := s.now().UTC()
	claims := Claims{
		PharmacyID: subject.PharmacyID,
		Role:       subject.Role,
		Email:      subject.Email,
		Name:       subject.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(subject.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded subject.
func (s *TokenService) Verify(token string) (Subject, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Subject{}, fmt.Errorf("%w: token not found. Please Login First", shared.ErrUnauthorized)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Subject{}, fmt.Errorf("%w: key expired or invalid", shared.ErrUnauthorized)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Subject{}, fmt.Errorf("%w: failed to authenticate. Please login", shared.ErrUnauthorized)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Subject{}, fmt.Errorf("%w: malformed subject", shared.ErrUnauthorized)
	}
	return Subject{
		UserID:     userID,
		PharmacyID: claims.PharmacyID,
		Role:       claims.Role,
		Email:      claims.Email,
		Name:       claims.Name,
	}, nil
}

// RequireRole fails with ErrForbidden when subject does not carry role.
func RequireRole(subject Subject, role string) error {
	if !subject.HasRole(role) {
		return fmt.Errorf("%w: requires role %q", shared.ErrForbidden, role)
	}
	return nil
}
