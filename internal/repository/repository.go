// Package repository persists realms, nooks, treasures, tags and media rows.
//
// The pgx repositories talk to PostgreSQL; the InMemory variants implement the
// same contracts for tests and the --memory development mode.
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"realmkeeper-backend/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the SQL applied by Migrate.
func Schema() string {
	return schemaSQL
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func notFound(what string) error {
	return apperr.NotFound(what + " not found")
}

// wrapGet classifies a single-row lookup failure.
func wrapGet(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, what+" not found", err)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
