package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veritas-legal/factgate/internal/model"
)

// CreateCase inserts a case and returns it. The engine only needs cases for
// the existence precondition; full case management lives in the platform.
func (db *DB) CreateCase(ctx context.Context, c model.Case) (model.Case, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if c.Status == "" {
		c.Status = "open"
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO cases (id, case_number, title, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.CaseNumber, c.Title, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return model.Case{}, fmt.Errorf("storage: create case: %w", err)
	}
	return c, nil
}

// GetCase retrieves a case by ID.
func (db *DB) GetCase(ctx context.Context, id uuid.UUID) (model.Case, error) {
	var c model.Case
	err := db.pool.QueryRow(ctx,
		`SELECT id, case_number, title, status, created_at, updated_at
		 FROM cases WHERE id = $1`, id,
	).Scan(&c.ID, &c.CaseNumber, &c.Title, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Case{}, fmt.Errorf("storage: case %s: %w", id, ErrNotFound)
		}
		return model.Case{}, fmt.Errorf("storage: get case: %w", err)
	}
	return c, nil
}

// CaseExists implements facts.Repository.
func (db *DB) CaseExists(ctx context.Context, caseID uuid.UUID) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, caseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: case exists: %w", err)
	}
	return exists, nil
}
