package db

import (
	"database/sql"
)

// Database is a connectable SQL backend. Connect opens the pool and applies
// pending migrations.
type Database interface {
	Connect() error
	Close() error
	DB() *sql.DB
	Dialect() Dialect
}
