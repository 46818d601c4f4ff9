package db

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema change. Each statement runs on its own
// so the same list works for drivers that reject multi-statement Exec.
type migration struct {
	version    int
	name       string
	statements []string
}

// migrations is the ordered list of all schema migrations.
// The SQL is kept to the subset shared by SQLite and PostgreSQL.
var migrations = []migration{
	{
		version: 1,
		name:    "create_posts_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				slug TEXT NOT NULL,
				excerpt TEXT NOT NULL,
				content TEXT NOT NULL,
				author TEXT NOT NULL,
				featured_image TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published')),
				publish_date TIMESTAMP NOT NULL,
				views INTEGER NOT NULL DEFAULT 0,
				likes INTEGER NOT NULL DEFAULT 0,
				seq INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_status_publish_date ON posts(status, publish_date DESC)`,
		},
	},
	{
		version: 2,
		name:    "create_post_tags_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS post_tags (
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				tag TEXT NOT NULL,
				PRIMARY KEY (post_id, position)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_post_tags_tag ON post_tags(tag)`,
		},
	},
	{
		version: 3,
		name:    "create_comments_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS comments (
				id TEXT PRIMARY KEY,
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				author TEXT NOT NULL,
				email TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				approved BOOLEAN NOT NULL DEFAULT FALSE,
				seq INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id)`,
		},
	},
	{
		version: 4,
		name:    "create_users_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		},
	},
	{
		version: 5,
		name:    "create_profiles_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS profiles (
				id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				username TEXT NOT NULL,
				email TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'admin',
				created_at TIMESTAMP NOT NULL
			)`,
		},
	},
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(db *sql.DB, dialect Dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	currentVersion := 0
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if err := applyMigration(db, dialect, m); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(db *sql.DB, dialect Dialect, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", m.version, err)
	}

	for _, stmt := range m.statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d (%s): %w", m.version, m.name, err)
		}
	}

	_, err = tx.Exec(
		Rebind(dialect, "INSERT INTO schema_migrations (version, name) VALUES (?, ?)"),
		m.version,
		m.name,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}
	return nil
}

// LatestVersion is the version the schema reaches once all migrations apply.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}
