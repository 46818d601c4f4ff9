package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAuth is the parent of every authentication failure.
	ErrAuth = errors.New("authentication failed")
	// ErrInvalidCredentials means the e-mail is unknown or the password is wrong.
	ErrInvalidCredentials = authError("invalid email or password")
	// ErrInvalidSession means the token is missing, malformed, expired or revoked.
	ErrInvalidSession = authError("invalid or expired session")
	// ErrProfileNotFound means the credentials were valid but the user has no profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrEmailTaken is returned when registering an e-mail that already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRegistrationClosed is returned when self-registration is disabled.
	ErrRegistrationClosed = errors.New("registration is disabled")
	// ErrUserNotFound is returned by repositories for unknown users.
	ErrUserNotFound = errors.New("user not found")
)

type sentinel struct {
	msg string
}

func (e *sentinel) Error() string { return e.msg }
func (e *sentinel) Unwrap() error { return ErrAuth }

func authError(msg string) error {
	return &sentinel{msg: msg}
}

// User is a stored login.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile is the display identity attached to a user.
type Profile struct {
	ID        string
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
}

// Identity is who a verified session belongs to.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session is issued on successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Identity  Identity  `json:"user"`
}

// Credentials carries a login attempt. Email is ignored by the shared-secret gate.
type Credentials struct {
	Email    string
	Password string
}

// Authenticator guards the admin area.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*Session, error)
	Verify(ctx context.Context, token string) (*Identity, error)
	Logout(ctx context.Context, token string) error
}

// UserRepository stores users and their profiles.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User, profile *Profile) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
