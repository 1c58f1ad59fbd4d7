// Package sqlite implements the control-plane repository on SQLite and
// PostgreSQL through sqlx. Row operations hang off a store bound to
// sqlx.ExtContext, so the same code runs on the shared pools and inside a
// transaction opened by WithTx.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/openclaw/internal/control/repository"
	"github.com/openclaw/openclaw/internal/db"
)

// store binds row operations to an execution context. Outside a
// transaction w is the single-connection writer and r the read-only pool;
// inside a transaction both point at the tx so reads observe its writes.
type store struct {
	w sqlx.ExtContext
	r sqlx.ExtContext
}

// Repository provides SQL-backed storage for the control plane.
type Repository struct {
	store
	pool *db.Pool
}

// New creates a repository on the given pool and initializes the schema.
func New(pool *db.Pool) (*Repository, error) {
	repo := &Repository{
		store: store{w: pool.Writer(), r: pool.Reader()},
		pool:  pool,
	}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

// WithTx runs fn within a single transaction on the writer connection.
func (r *Repository) WithTx(ctx context.Context, fn func(s repository.Store) error) error {
	tx, err := r.pool.Writer().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&store{w: tx, r: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying pools.
func (r *Repository) Close() error {
	return r.pool.Close()
}

// encodeJSON marshals v for a TEXT column, falling back to the given empty
// literal when marshalling fails.
func encodeJSON(v interface{}, empty string) string {
	if v == nil {
		return empty
	}
	b, err := json.Marshal(v)
	if err != nil {
		return empty
	}
	return string(b)
}

// decodeJSON unmarshals a TEXT column into dest, ignoring empty values.
func decodeJSON(raw string, dest interface{}) {
	if raw == "" {
		return
	}
	_ = json.Unmarshal([]byte(raw), dest)
}

// isUniqueViolation detects unique-constraint errors from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
