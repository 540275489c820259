package auth

import (
	"errors"
	"time"

	"call-insights-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager issues and verifies the HS256 admin tokens used for company
// provisioning. Tenant traffic never uses JWTs; companies authenticate with
// their API key.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.AdminSecret == "" {
		return nil, errors.New("ADMIN_TOKEN_SECRET is required")
	}
	return &Manager{
		secret: []byte(cfg.AdminSecret),
		issuer: cfg.AdminIssuer,
		ttl:    cfg.AdminTokenTTL,
	}, nil
}

type AdminClaims struct {
	jwt.RegisteredClaims

	Subject string `json:"admin_subject"`
}

// Issue mints an admin token for the named operator.
func (m *Manager) Issue(now time.Time, subject string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		Subject: subject,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(m.secret)
}

// Verify parses and validates an admin token.
func (m *Manager) Verify(tokenString string, now time.Time) (AdminClaims, error) {
	var claims AdminClaims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return AdminClaims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return AdminClaims{}, err
	}

	if claims.Subject == "" {
		return AdminClaims{}, errors.New("admin_subject missing")
	}
	return claims, nil
}
