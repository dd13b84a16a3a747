// Package admin signs in the store operator and guards the operator routes.
package admin

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSecretTooShort     = errors.New("jwt secret is too short")
)

const (
	RoleAdmin = "admin"
	TokenTTL  = 12 * time.Hour
)

// MinSecretLength is the shortest JWT_SECRET accepted for HS256 signing.
const MinSecretLength = 32

// Service holds the single operator account configured through the
// environment.
type Service struct {
	email        string
	passwordHash []byte
	secret       []byte
	now          func() time.Time
}

func NewService(email, passwordHash, secret string) *Service {
	return &Service{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		now:          time.Now,
	}
}

// Configured reports whether sign-in can succeed at all.
func (s *Service) Configured() bool {
	return s.email != "" && len(s.passwordHash) > 0 && s.SecretUsable()
}

// SecretUsable reports whether tokens can be signed and verified.
func (s *Service) SecretUsable() bool {
	return len(s.secret) >= MinSecretLength
}

func (s *Service) Authenticate(email, password string) error {
	if !s.Configured() || strings.ToLower(strings.TrimSpace(email)) != s.email {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueToken returns a signed HS256 token carrying the admin role.
func (s *Service) IssueToken() (string, time.Time, error) {
	if !s.SecretUsable() {
		return "", time.Time{}, ErrSecretTooShort
	}
	exp := s.now().Add(TokenTTL)
	claims := jwt.MapClaims{
		"sub":  s.email,
		"role": RoleAdmin,
		"exp":  exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// HashPassword is used by the hash-password command to produce
// ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
