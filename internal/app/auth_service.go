package app

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JanhviHarwani/access-ed-backend/internal/pkg/jwtutil"
)

// AuthService authenticates the single operator account that manages the
// document corpus. The account is configured, not stored: there is no user
// table and no registration.
type AuthService struct {
	username      string
	passwordHash  []byte
	jwtSecret     string
	jwtExpiration time.Duration
}

// NewAuthService builds the operator account from configuration. When only a
// plaintext password is configured it is hashed once at startup so the rest
// of the service never holds the plaintext.
func NewAuthService(username, passwordHash, password, jwtSecret string, jwtExpiration time.Duration) (*AuthService, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: operator username is empty", ErrInvalidInput)
	}

	var hash []byte
	switch {
	case passwordHash != "":
		hash = []byte(passwordHash)
	case password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash operator password failed: %w", err)
		}
		hash = h
	default:
		return nil, fmt.Errorf("%w: operator password is not configured", ErrInvalidInput)
	}

	return &AuthService{
		username:      username,
		passwordHash:  hash,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}, nil
}

// Login verifies the operator credentials and issues an access token.
func (s *AuthService) Login(username, password string) (string, error) {
	if username != s.username {
		return "", ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredential
	}
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, s.username)
	if err != nil {
		return "", fmt.Errorf("generate token failed: %w", err)
	}
	return token, nil
}
