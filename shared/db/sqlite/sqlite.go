package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	"github.com/dfryer1193/racblog/shared/db"
	_ "modernc.org/sqlite"
)

const (
	// defaultPath is the default path for the SQLite database
	defaultPath = "./racblog.db"
)

// connPragmas apply to every pooled connection. modernc reads them from the DSN,
// which matters for foreign_keys since SQLite scopes it per connection.
var connPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

type SQLiteConfig struct {
	Path string
}

func NewSQLiteConfig() *SQLiteConfig {
	path := os.Getenv("SQLITE_DB_PATH")
	if path == "" {
		path = defaultPath
	}

	return &SQLiteConfig{
		Path: path,
	}
}

// SQLiteDB implements the db.Database interface for SQLite
type SQLiteDB struct {
	dbPath string
	db     *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance for cfg.Path.
func NewSQLiteDB(cfg *SQLiteConfig) *SQLiteDB {
	return &SQLiteDB{
		dbPath: cfg.Path,
	}
}

func (s *SQLiteDB) dsn() string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	q.Set("_time_format", "sqlite")
	return "file:" + s.dbPath + "?" + q.Encode()
}

// Connect opens a connection to the SQLite database and migrates the schema.
func (s *SQLiteDB) Connect() error {
	if s.db != nil {
		return fmt.Errorf("database already connected")
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Database-wide settings; these persist in the file or apply to the pool.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s.db = db

	if err := runMigrations(db); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func runMigrations(conn *sql.DB) error {
	return db.RunMigrations(conn, db.DialectSQLite)
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying *sql.DB instance
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Dialect reports SQLite so repositories can keep `?` placeholders as is.
func (s *SQLiteDB) Dialect() db.Dialect {
	return db.DialectSQLite
}
