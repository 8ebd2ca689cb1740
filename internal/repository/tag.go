package repository

import (
	"context"
	"fmt"

	"realmkeeper-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// tagLink names a join table between tags and an owning entity
type tagLink struct {
	table  string
	column string
}

var (
	locationTagLink = tagLink{table: "location_tags", column: "location_id"}
	treasureTagLink = tagLink{table: "treasure_tags", column: "treasure_id"}
)

// TagRepository handles database operations for tags and their associations
type TagRepository struct {
	db *pgxpool.Pool
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *pgxpool.Pool) *TagRepository {
	return &TagRepository{db: db}
}

// Create inserts a new tag
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	query := `INSERT INTO tags (id, name, color, user_id) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.Exec(ctx, query, tag.ID, tag.Name, tag.Color, tag.UserID); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetByID retrieves a tag by ID
func (r *TagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	query := `SELECT id, name, color, user_id FROM tags WHERE id = $1`
	var tag models.Tag
	err := r.db.QueryRow(ctx, query, id).Scan(&tag.ID, &tag.Name, &tag.Color, &tag.UserID)
	if err != nil {
		return nil, wrapGet(err, "tag")
	}
	return &tag, nil
}

// ListByUser retrieves a user's tags ordered by name
func (r *TagRepository) ListByUser(ctx context.Context, userID string) ([]*models.Tag, error) {
	query := `SELECT id, name, color, user_id FROM tags WHERE user_id = $1 ORDER BY name`
	return r.list(ctx, query, userID)
}

// Update modifies a tag's name and color
func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	query := `UPDATE tags SET name = $1, color = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, tag.Name, tag.Color, tag.ID)
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("tag")
	}
	return nil
}

// Delete removes a tag and every association that references it
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, link := range []tagLink{locationTagLink, treasureTagLink} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+link.table+` WHERE tag_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", link.table, err)
		}
	}
	result, err := tx.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("tag")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tag delete: %w", err)
	}
	return nil
}

// LocationTags retrieves the tags attached to a location
func (r *TagRepository) LocationTags(ctx context.Context, locationID string) ([]*models.Tag, error) {
	return r.linked(ctx, locationTagLink, locationID)
}

// TreasureTags retrieves the tags attached to a treasure
func (r *TagRepository) TreasureTags(ctx context.Context, treasureID string) ([]*models.Tag, error) {
	return r.linked(ctx, treasureTagLink, treasureID)
}

// AddLocationTag attaches a tag to a location. Attaching twice is a no-op.
func (r *TagRepository) AddLocationTag(ctx context.Context, locationID, tagID string) error {
	return r.ApplyLocationTagDiff(ctx, locationID, []string{tagID}, nil)
}

// RemoveLocationTag detaches a tag from a location
func (r *TagRepository) RemoveLocationTag(ctx context.Context, locationID, tagID string) error {
	return r.ApplyLocationTagDiff(ctx, locationID, nil, []string{tagID})
}

// AddTreasureTag attaches a tag to a treasure. Attaching twice is a no-op.
func (r *TagRepository) AddTreasureTag(ctx context.Context, treasureID, tagID string) error {
	return r.ApplyTreasureTagDiff(ctx, treasureID, []string{tagID}, nil)
}

// RemoveTreasureTag detaches a tag from a treasure
func (r *TagRepository) RemoveTreasureTag(ctx context.Context, treasureID, tagID string) error {
	return r.ApplyTreasureTagDiff(ctx, treasureID, nil, []string{tagID})
}

// ApplyLocationTagDiff inserts and deletes location associations in one transaction
func (r *TagRepository) ApplyLocationTagDiff(ctx context.Context, locationID string, add, remove []string) error {
	return r.applyDiff(ctx, locationTagLink, locationID, add, remove)
}

// ApplyTreasureTagDiff inserts and deletes treasure associations in one transaction
func (r *TagRepository) ApplyTreasureTagDiff(ctx context.Context, treasureID string, add, remove []string) error {
	return r.applyDiff(ctx, treasureTagLink, treasureID, add, remove)
}

func (r *TagRepository) applyDiff(ctx context.Context, link tagLink, ownerID string, add, remove []string) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	insert := `INSERT INTO ` + link.table + ` (` + link.column + `, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	del := `DELETE FROM ` + link.table + ` WHERE ` + link.column + ` = $1 AND tag_id = $2`
	for _, tagID := range add {
		batch.Queue(insert, ownerID, tagID)
	}
	for _, tagID := range remove {
		batch.Queue(del, ownerID, tagID)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to apply %s changes: %w", link.table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s changes: %w", link.table, err)
	}
	return nil
}

func (r *TagRepository) linked(ctx context.Context, link tagLink, ownerID string) ([]*models.Tag, error) {
	query := `
		SELECT t.id, t.name, t.color, t.user_id
		FROM tags t
		JOIN ` + link.table + ` lt ON lt.tag_id = t.id
		WHERE lt.` + link.column + ` = $1
		ORDER BY t.name
	`
	return r.list(ctx, query, ownerID)
}

func (r *TagRepository) list(ctx context.Context, query string, args ...any) ([]*models.Tag, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	defer rows.Close()

	tags := []*models.Tag{}
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color, &tag.UserID); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}
