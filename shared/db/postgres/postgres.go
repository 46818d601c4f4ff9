package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/dfryer1193/racblog/shared/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const connectTimeout = 10 * time.Second

type PostgresConfig struct {
	URL string
}

func NewPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		URL: os.Getenv("DATABASE_URL"),
	}
}

// PostgresDB implements the db.Database interface on a pgx pool exposed
// through database/sql.
type PostgresDB struct {
	url  string
	pool *pgxpool.Pool
	db   *sql.DB
}

func NewPostgresDB(cfg *PostgresConfig) *PostgresDB {
	return &PostgresDB{
		url: cfg.URL,
	}
}

// Connect opens the pool, pings the server and migrates the schema.
func (p *PostgresDB) Connect() error {
	if p.db != nil {
		return fmt.Errorf("database already connected")
	}
	if p.url == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, p.url)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	conn := stdlib.OpenDBFromPool(pool)
	if err := db.RunMigrations(conn, db.DialectPostgres); err != nil {
		conn.Close()
		pool.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.pool = pool
	p.db = conn
	return nil
}

// Close closes the database/sql handle and the underlying pool.
func (p *PostgresDB) Close() error {
	if p.db == nil {
		return nil
	}

	err := p.db.Close()
	p.pool.Close()
	p.db = nil
	p.pool = nil
	return err
}

func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

func (p *PostgresDB) Dialect() db.Dialect {
	return db.DialectPostgres
}
