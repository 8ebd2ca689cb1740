package repository

import (
	"context"
	"fmt"

	"realmkeeper-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const mediaColumns = `id, entity_type, entity_id, storage_path, is_primary, mime_type, file_size, user_id, created_at`

// MediaRepository handles database operations for media metadata rows
type MediaRepository struct {
	db *pgxpool.Pool
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *pgxpool.Pool) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media row
func (r *MediaRepository) Create(ctx context.Context, m *models.Media) error {
	query := `
		INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		m.ID, m.EntityType, m.EntityID, m.StoragePath, m.IsPrimary,
		m.MimeType, m.FileSize, m.UserID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

// GetByID retrieves a media row by ID
func (r *MediaRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`
	m, err := scanMedia(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapGet(err, "media")
	}
	return m, nil
}

// ListByEntity retrieves an entity's media, primary first then oldest first
func (r *MediaRepository) ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.Media, error) {
	query := `
		SELECT ` + mediaColumns + `
		FROM media
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY is_primary DESC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	defer rows.Close()

	media := []*models.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media: %w", err)
	}
	return media, nil
}

// SetPrimary marks one media row primary and clears the flag on its siblings.
// Both updates commit together, so readers never see two primaries.
func (r *MediaRepository) SetPrimary(ctx context.Context, entityType models.EntityType, entityID, mediaID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lock := `SELECT id FROM media WHERE entity_type = $1 AND entity_id = $2 FOR UPDATE`
	if _, err := tx.Exec(ctx, lock, entityType, entityID); err != nil {
		return fmt.Errorf("failed to lock media: %w", err)
	}

	unset := `UPDATE media SET is_primary = FALSE WHERE entity_type = $1 AND entity_id = $2 AND id <> $3 AND is_primary`
	if _, err := tx.Exec(ctx, unset, entityType, entityID, mediaID); err != nil {
		return fmt.Errorf("failed to clear primary media: %w", err)
	}

	set := `UPDATE media SET is_primary = TRUE WHERE entity_type = $1 AND entity_id = $2 AND id = $3`
	result, err := tx.Exec(ctx, set, entityType, entityID, mediaID)
	if err != nil {
		return fmt.Errorf("failed to set primary media: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("media")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit primary media: %w", err)
	}
	return nil
}

// Delete removes a media row
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("media")
	}
	return nil
}

func scanMedia(row scanner) (*models.Media, error) {
	var m models.Media
	err := row.Scan(
		&m.ID, &m.EntityType, &m.EntityID, &m.StoragePath, &m.IsPrimary,
		&m.MimeType, &m.FileSize, &m.UserID, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
