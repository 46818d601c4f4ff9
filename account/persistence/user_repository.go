package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dfryer1193/racblog/account/domain"
	"github.com/dfryer1193/racblog/shared/db"
)

var _ domain.UserRepository = (*SQLUserRepository)(nil)

// SQLUserRepository implements domain.UserRepository on the users and profiles tables.
type SQLUserRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewUserRepository(database db.Database) *SQLUserRepository {
	return &SQLUserRepository{
		db:      database.DB(),
		dialect: database.Dialect(),
	}
}

func (r *SQLUserRepository) q(query string) string {
	return db.Rebind(r.dialect, query)
}

// CreateUser inserts the user and its profile together. Profile may be nil.
func (r *SQLUserRepository) CreateUser(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	email := normalizeEmail(user.Email)

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		var n int
		err := executor.QueryRowContext(txCtx, r.q("SELECT COUNT(*) FROM users WHERE email = ?"), email).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if n > 0 {
			return domain.ErrEmailTaken
		}

		_, err = executor.ExecContext(txCtx,
			r.q("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
			user.ID, email, user.PasswordHash, user.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}

		if profile == nil {
			return nil
		}
		_, err = executor.ExecContext(txCtx,
			r.q("INSERT INTO profiles (id, username, email, role, created_at) VALUES (?, ?, ?, ?, ?)"),
			user.ID, profile.Username, email, profile.Role, profile.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}
		return nil
	})
}

func (r *SQLUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx,
		r.q("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"), normalizeEmail(email)).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *SQLUserRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRowContext(ctx,
		r.q("SELECT id, username, email, role, created_at FROM profiles WHERE id = ?"), userID).
		Scan(&p.ID, &p.Username, &p.Email, &p.Role, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
