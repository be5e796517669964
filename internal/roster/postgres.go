package roster

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore keeps the roster in a pgvector table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to url and verifies the connection.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	if url == "" {
		return nil, errors.New("database URL is required")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// Migrate applies pending embedded migrations in file name order.
func (s *PostgresStore) Migrate(ctx context.Context) ([]string, error) {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}
	var pending []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !applied[e.Name()] {
			pending = append(pending, e.Name())
		}
	}
	sort.Strings(pending)

	for _, file := range pending {
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", file, err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", file); err != nil {
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return pending, nil
}

// Load reads every embedding. An empty table yields ErrNoRoster.
func (s *PostgresStore) Load(ctx context.Context) (*Roster, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, embedding, source, model, created_at
		FROM roster_embeddings
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	r := &Roster{}
	for rows.Next() {
		var (
			e       Entry
			vec     pgvector.Vector
			model   string
			created time.Time
		)
		if err := rows.Scan(&e.Name, &vec, &e.Source, &model, &created); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		e.Embedding = vec.Slice()
		r.Entries = append(r.Entries, e)
		r.Model = model
		if created.After(r.UpdatedAt) {
			r.UpdatedAt = created
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	if len(r.Entries) == 0 {
		return nil, ErrNoRoster
	}
	return r, nil
}

// Save replaces the stored roster in one transaction.
func (s *PostgresStore) Save(ctx context.Context, r *Roster) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM roster_embeddings"); err != nil {
			return fmt.Errorf("clear roster: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO roster_embeddings (name, embedding, source, model)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("prepare roster insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range r.Entries {
			if _, err := stmt.ExecContext(ctx, e.Name, pgvector.NewVector(e.Embedding), e.Source, r.Model); err != nil {
				return fmt.Errorf("insert roster entry for %s: %w", e.Name, err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
