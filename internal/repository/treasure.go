package repository

import (
	"context"
	"fmt"

	"realmkeeper-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const treasureColumns = `id, name, description, nook_location_id, user_id, stored_at, created_at, updated_at`

// TreasureRepository handles database operations for treasures
type TreasureRepository struct {
	db *pgxpool.Pool
}

// NewTreasureRepository creates a new treasure repository
func NewTreasureRepository(db *pgxpool.Pool) *TreasureRepository {
	return &TreasureRepository{db: db}
}

// Create inserts a new treasure
func (r *TreasureRepository) Create(ctx context.Context, t *models.Treasure) error {
	query := `
		INSERT INTO treasures (` + treasureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.Name, t.Description, t.NookLocationID, t.UserID, t.StoredAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create treasure: %w", err)
	}
	return nil
}

// GetByID retrieves a treasure by ID
func (r *TreasureRepository) GetByID(ctx context.Context, id string) (*models.Treasure, error) {
	query := `SELECT ` + treasureColumns + ` FROM treasures WHERE id = $1`
	t, err := scanTreasure(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapGet(err, "treasure")
	}
	return t, nil
}

// ListByNook retrieves all treasures stored in a nook, newest first
func (r *TreasureRepository) ListByNook(ctx context.Context, nookID string) ([]*models.Treasure, error) {
	query := `
		SELECT ` + treasureColumns + `
		FROM treasures
		WHERE nook_location_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, nookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get treasures: %w", err)
	}
	defer rows.Close()

	return collectTreasures(rows)
}

// ListByUser retrieves a user's treasures with pagination
func (r *TreasureRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Treasure, int, error) {
	countQuery := `SELECT COUNT(*) FROM treasures WHERE user_id = $1`
	var total int
	if err := r.db.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count treasures: %w", err)
	}

	query := `
		SELECT ` + treasureColumns + `
		FROM treasures
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get treasures: %w", err)
	}
	defer rows.Close()

	treasures, err := collectTreasures(rows)
	if err != nil {
		return nil, 0, err
	}
	return treasures, total, nil
}

// Update modifies name, description, nook and stored_at
func (r *TreasureRepository) Update(ctx context.Context, t *models.Treasure) error {
	query := `
		UPDATE treasures
		SET name = $1, description = $2, nook_location_id = $3, stored_at = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.Exec(ctx, query, t.Name, t.Description, t.NookLocationID, t.StoredAt, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update treasure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("treasure")
	}
	return nil
}

// Delete removes a treasure and its tag associations
func (r *TreasureRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM treasure_tags WHERE treasure_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete treasure tags: %w", err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM treasures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete treasure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("treasure")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit treasure delete: %w", err)
	}
	return nil
}

// HasTreasures checks if any treasure is stored in the nook
func (r *TreasureRepository) HasTreasures(ctx context.Context, nookID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM treasures WHERE nook_location_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, nookID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for treasures: %w", err)
	}
	return exists, nil
}

type rowIterator interface {
	scanner
	Next() bool
	Err() error
}

func collectTreasures(rows rowIterator) ([]*models.Treasure, error) {
	treasures := []*models.Treasure{}
	for rows.Next() {
		t, err := scanTreasure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan treasure: %w", err)
		}
		treasures = append(treasures, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating treasures: %w", err)
	}
	return treasures, nil
}

func scanTreasure(row scanner) (*models.Treasure, error) {
	var t models.Treasure
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.NookLocationID, &t.UserID,
		&t.StoredAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
