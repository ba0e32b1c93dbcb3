package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Connections are recycled periodically so long-lived processes survive
// database failovers without holding dead sockets.
const connMaxLifetime = 5 * time.Minute

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB opens a connection pool and verifies it with a ping.
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=textpay sslmode=disable"
func NewDB(connectionString string, maxOpenConns, maxIdleConns int) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
