package repository

import (
	"context"
	"fmt"

	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const locationColumns = `id, name, description, latitude, longitude, radius, is_public,
	parent_location_id, user_id, created_at, updated_at`

// LocationRepository handles database operations for realms and nooks
type LocationRepository struct {
	db *pgxpool.Pool
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *pgxpool.Pool) *LocationRepository {
	return &LocationRepository{db: db}
}

// Create inserts a new location
func (r *LocationRepository) Create(ctx context.Context, loc *models.Location) error {
	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		loc.ID, loc.Name, loc.Description, loc.Latitude, loc.Longitude, loc.Radius,
		loc.IsPublic, loc.ParentLocationID, loc.UserID, loc.CreatedAt, loc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

// GetByID retrieves a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	loc, err := scanLocation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapGet(err, "location")
	}
	return loc, nil
}

// ListRealms retrieves all realms owned by a user, newest first
func (r *LocationRepository) ListRealms(ctx context.Context, userID string) ([]*models.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE user_id = $1 AND parent_location_id IS NULL
		ORDER BY created_at DESC
	`
	return r.list(ctx, "realms", query, userID)
}

// ListNooks retrieves all nooks inside a realm, newest first
func (r *LocationRepository) ListNooks(ctx context.Context, realmID string) ([]*models.Location, error) {
	query := `
		SELECT ` + locationColumns + `
		FROM locations
		WHERE parent_location_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "nooks", query, realmID)
}

// RealmsNearby retrieves a user's realms whose center is within radius meters of p
func (r *LocationRepository) RealmsNearby(ctx context.Context, userID string, p geo.Point, radius float64) ([]*models.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM realms_nearby($1, $2, $3, $4)`
	return r.list(ctx, "nearby realms", query, userID, p.Latitude, p.Longitude, radius)
}

// Update modifies name, description, coordinates, radius and visibility
func (r *LocationRepository) Update(ctx context.Context, loc *models.Location) error {
	query := `
		UPDATE locations
		SET name = $1, description = $2, latitude = $3, longitude = $4,
			radius = $5, is_public = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := r.db.Exec(ctx, query,
		loc.Name, loc.Description, loc.Latitude, loc.Longitude,
		loc.Radius, loc.IsPublic, loc.UpdatedAt, loc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("location")
	}
	return nil
}

// Delete removes a location and its tag associations. Child nooks and
// treasures are not touched.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM location_tags WHERE location_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete location tags: %w", err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("location")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit location delete: %w", err)
	}
	return nil
}

// HasNooks checks if any nook references the location as its parent
func (r *LocationRepository) HasNooks(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM locations WHERE parent_location_id = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check for nooks: %w", err)
	}
	return exists, nil
}

func (r *LocationRepository) list(ctx context.Context, what, query string, args ...any) ([]*models.Location, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	defer rows.Close()

	locations := []*models.Location{}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return locations, nil
}

func scanLocation(row scanner) (*models.Location, error) {
	var loc models.Location
	err := row.Scan(
		&loc.ID, &loc.Name, &loc.Description, &loc.Latitude, &loc.Longitude, &loc.Radius,
		&loc.IsPublic, &loc.ParentLocationID, &loc.UserID, &loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
