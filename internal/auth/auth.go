package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"weekly-expenses/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSessionToken returns a random 32-byte token, hex encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// UserStore is the persistence the Authenticator needs.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator verifies credentials and registers users.
type Authenticator struct {
	store UserStore
}

// NewAuthenticator creates an Authenticator backed by store.
func NewAuthenticator(store UserStore) *Authenticator {
	return &Authenticator{store: store}
}

// VerifyCredentials returns the user owning email when password matches.
// Unknown emails and wrong passwords both yield models.ErrInvalidCredentials.
func (a *Authenticator) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser hashes password and stores a new user.
// It fails with models.ErrDuplicateEmail when the email is taken.
func (a *Authenticator) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	verr := models.NewValidationError()
	if email == "" {
		verr.Add("email", "Email is required")
	} else if !strings.Contains(email, "@") {
		verr.Add("email", "Email must contain @")
	}
	if strings.TrimSpace(password) == "" {
		verr.Add("password", "Password is required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return a.store.CreateUser(ctx, email, hash)
}
