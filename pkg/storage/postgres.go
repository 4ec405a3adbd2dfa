package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultPostgresTable holds one row per schema
const DefaultPostgresTable = "json_schemas"

// PostgresSource reads schema documents from a table with the columns
// name (text, primary key) and document (text).
type PostgresSource struct {
	db        *sql.DB
	table     string
	listQuery string
	getQuery  string
}

// OpenPostgres connects to PostgreSQL and verifies the connection
func OpenPostgres(ctx context.Context, cfg Config) (*PostgresSource, error) {
	if cfg.PostgresURL == "" {
		return nil, errors.New("postgres URL is required")
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if cfg.PostgresMaxConns > 0 {
		db.SetMaxOpenConns(cfg.PostgresMaxConns)
		db.SetMaxIdleConns(cfg.PostgresMaxConns / 2)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.PostgresTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return NewPostgresSource(db, cfg.PostgresTable), nil
}

// NewPostgresSource reads from table (DefaultPostgresTable when empty) over
// an existing connection pool. The source owns db and closes it.
func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	if table == "" {
		table = DefaultPostgresTable
	}
	quoted := pq.QuoteIdentifier(table)
	return &PostgresSource{
		db:        db,
		table:     table,
		listQuery: "SELECT name, document FROM " + quoted + " ORDER BY name",
		getQuery:  "SELECT document FROM " + quoted + " WHERE name = $1",
	}
}

// DB returns the connection pool, for health checks
func (s *PostgresSource) DB() *sql.DB {
	return s.db
}

// Kind implements Source
func (s *PostgresSource) Kind() string {
	return TypePostgres
}

// List implements Source
func (s *PostgresSource) List(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var name, document string
		if err := rows.Scan(&name, &document); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		docs = append(docs, s.document(name, document))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	return docs, nil
}

// Get implements Source
func (s *PostgresSource) Get(ctx context.Context, name string) (Document, error) {
	var document string
	err := s.db.QueryRowContext(ctx, s.getQuery, name).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get schema %q: %w", name, err)
	}
	return s.document(name, document), nil
}

func (s *PostgresSource) document(name, document string) Document {
	return Document{
		Name:     name,
		Data:     []byte(document),
		Format:   FormatJSON,
		Location: fmt.Sprintf("postgres:%s/%s", s.table, name),
	}
}

// Close implements Source
func (s *PostgresSource) Close() error {
	return s.db.Close()
}
