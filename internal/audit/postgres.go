package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLog mirrors print-log.txt into a print_log table.
type PostgresLog struct {
	mu   sync.Mutex // pgx.Conn is not safe for concurrent use
	db   execer
	conn *pgx.Conn
}

// NewPostgresLog connects and makes sure the table exists.
func NewPostgresLog(ctx context.Context, connString string) (*PostgresLog, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &PostgresLog{db: conn, conn: conn}, nil
}

func initSchema(ctx context.Context, db execer) error {
	_, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS print_log (
			id BIGSERIAL PRIMARY KEY,
			line TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

func (p *PostgresLog) Append(ctx context.Context, line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.db.Exec(ctx, `INSERT INTO print_log (line) VALUES ($1)`, singleLine(line))
	return err
}

// Close terminates the database connection.
func (p *PostgresLog) Close(ctx context.Context) {
	if p.conn != nil {
		p.conn.Close(ctx)
	}
}
