package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/racblog/account/domain"
	blogdomain "github.com/dfryer1193/racblog/blog/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var _ domain.Authenticator = (*IdentityService)(nil)

const (
	// DefaultSessionTTL applies when no TTL is configured.
	DefaultSessionTTL = 24 * time.Hour
	minPasswordLength = 8
	defaultRole       = "admin"
)

// dummyHash is compared against when the e-mail is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

type IdentityConfig struct {
	Secret            []byte
	TTL               time.Duration
	AllowRegistration bool
	BcryptCost        int
}

type sessionClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// IdentityService authenticates users stored in a UserRepository and issues
// HS256 session tokens.
type IdentityService struct {
	users domain.UserRepository
	cfg   IdentityConfig
	now   func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewIdentityService(users domain.UserRepository, cfg IdentityConfig) (*IdentityService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &IdentityService{
		users:   users,
		cfg:     cfg,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// Login checks the credentials, resolves the user's profile and issues a session.
// A missing profile is reported as ErrProfileNotFound, not as bad credentials.
func (s *IdentityService) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, blogdomain.Transport("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		log.Info().Str("email", user.Email).Msg("Rejected login")
		return nil, domain.ErrInvalidCredentials
	}

	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			log.Warn().Str("user", user.ID).Msg("Login without profile")
			return nil, err
		}
		return nil, blogdomain.Transport("login", err)
	}

	identity := domain.Identity{ID: user.ID, Username: profile.Username, Email: user.Email}
	session, err := s.issue(identity)
	if err != nil {
		return nil, err
	}
	log.Info().Str("user", user.ID).Msg("Login succeeded")
	return session, nil
}

func (s *IdentityService) issue(identity domain.Identity) (*domain.Session, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.cfg.TTL)
	claims := &sessionClaims{
		Email:    identity.Email,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return &domain.Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		Identity:  identity,
	}, nil
}

func (s *IdentityService) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return s.cfg.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidSession
	}
	return claims, nil
}

// Verify returns the identity a valid, unrevoked token belongs to.
func (s *IdentityService) Verify(_ context.Context, token string) (*domain.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, domain.ErrInvalidSession
	}

	return &domain.Identity{ID: claims.Subject, Username: claims.Username, Email: claims.Email}, nil
}

// Logout revokes the token until it would have expired anyway. Revocations
// are held in memory and do not survive a restart.
func (s *IdentityService) Logout(_ context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// Register creates a user with an admin profile when self-registration is enabled.
func (s *IdentityService) Register(ctx context.Context, username, email, password string) (*domain.Identity, error) {
	if !s.cfg.AllowRegistration {
		return nil, domain.ErrRegistrationClosed
	}

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return nil, blogdomain.Invalid("username", "must not be empty")
	}
	if !blogdomain.ValidEmail(email) {
		return nil, blogdomain.Invalid("email", "must be a valid e-mail address")
	}
	if len(password) < minPasswordLength {
		return nil, blogdomain.Invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{ID: uuid.NewString(), Email: email, PasswordHash: string(hash), CreatedAt: now}
	profile := &domain.Profile{ID: user.ID, Username: username, Email: email, Role: defaultRole, CreatedAt: now}
	if err := s.users.CreateUser(ctx, user, profile); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, blogdomain.Transport("register", err)
	}

	log.Info().Str("user", user.ID).Str("username", username).Msg("Registered user")
	return &domain.Identity{ID: user.ID, Username: username, Email: email}, nil
}
