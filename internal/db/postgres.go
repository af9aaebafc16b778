package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostgresClient manages one connection to one PostgreSQL database. Like the
// SQLite client, it is owned by a single extraction pass and released
// unconditionally when the pass finishes.
type PostgresClient struct {
	conn  *pgx.Conn
	label string
}

// NewPostgresClient connects and verifies the connection with a ping, so
// unreachable or misconfigured targets fail here rather than halfway through
// extraction.
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg := conn.Config()
	return &PostgresClient{
		conn:  conn,
		label: fmt.Sprintf("postgres://%s/%s", cfg.Host, cfg.Database),
	}, nil
}

// Close closes the database connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// Label returns a credential-free description of the connected database,
// used as the extracted model's source.
func (c *PostgresClient) Label() string {
	return c.label
}
