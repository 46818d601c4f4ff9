package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dfryer1193/racblog/account/domain"
	blogdomain "github.com/dfryer1193/racblog/blog/domain"
	"github.com/dfryer1193/racblog/shared/kv"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var _ domain.Authenticator = (*SharedSecretGate)(nil)

// AdminSessionKey is where the single admin session token is kept.
const AdminSessionKey = "admin_session"

// adminIdentity is reported for every session opened through the gate.
var adminIdentity = domain.Identity{ID: "admin", Username: "admin"}

type storedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SharedSecretGate protects the admin area with one configured password.
// Only one session exists at a time; a new login replaces the previous one.
type SharedSecretGate struct {
	password string
	store    kv.Store
	ttl      time.Duration
	now      func() time.Time
}

func NewSharedSecretGate(password string, store kv.Store, ttl time.Duration) *SharedSecretGate {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SharedSecretGate{
		password: password,
		store:    store,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (g *SharedSecretGate) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	if g.password == "" || subtle.ConstantTimeCompare([]byte(creds.Password), []byte(g.password)) != 1 {
		log.Info().Msg("Rejected admin password")
		return nil, domain.ErrInvalidCredentials
	}

	session := storedSession{
		Token:     uuid.NewString() + uuid.NewString(),
		ExpiresAt: g.now().Add(g.ttl),
	}
	if err := kv.SetJSON(ctx, g.store, AdminSessionKey, session); err != nil {
		return nil, blogdomain.Transport("login", err)
	}

	return &domain.Session{Token: session.Token, ExpiresAt: session.ExpiresAt, Identity: adminIdentity}, nil
}

func (g *SharedSecretGate) current(ctx context.Context, token string) (*storedSession, error) {
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	var session storedSession
	ok, err := kv.GetJSON(ctx, g.store, AdminSessionKey, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin session: %w", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(session.Token)) != 1 {
		return nil, domain.ErrInvalidSession
	}
	if !g.now().Before(session.ExpiresAt) {
		return nil, domain.ErrInvalidSession
	}
	return &session, nil
}

func (g *SharedSecretGate) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if _, err := g.current(ctx, token); err != nil {
		return nil, err
	}
	identity := adminIdentity
	return &identity, nil
}

func (g *SharedSecretGate) Logout(ctx context.Context, token string) error {
	if _, err := g.current(ctx, token); err != nil {
		return err
	}
	if err := g.store.Delete(ctx, AdminSessionKey); err != nil {
		return fmt.Errorf("failed to clear admin session: %w", err)
	}
	return nil
}
