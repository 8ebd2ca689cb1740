package services

import (
	"context"
	"fmt"
	"time"

	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/models"
)

// Pagination limits for listing a user's treasures
const (
	DefaultTreasureLimit = 50
	MaxTreasureLimit     = 100
)

// TreasureInput is the create/update payload of a treasure. NookLocationID
// is only read by Update, which may move the treasure to another nook.
type TreasureInput struct {
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	NookLocationID string     `json:"nook_location_id"`
	StoredAt       *time.Time `json:"stored_at"`
}

// TreasureService handles treasure business logic
type TreasureService struct {
	base
	treasures TreasureStore
	locations LocationStore
}

// NewTreasureService creates a new treasure service
func NewTreasureService(treasures TreasureStore, locations LocationStore, opts Options) *TreasureService {
	return &TreasureService{base: newBase(opts), treasures: treasures, locations: locations}
}

// List retrieves the treasures stored in one of the user's nooks
func (s *TreasureService) List(ctx context.Context, userID, nookID string) ([]*models.Treasure, error) {
	if _, err := ownedNook(ctx, s.locations, userID, nookID); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.opts.Cache, s.opts.Metrics, treasuresKey(nookID), func() ([]*models.Treasure, error) {
		return s.treasures.ListByNook(ctx, nookID)
	})
}

// ListByUser retrieves all of a user's treasures with pagination
func (s *TreasureService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Treasure, int, error) {
	if limit <= 0 {
		limit = DefaultTreasureLimit
	}
	if limit > MaxTreasureLimit {
		limit = MaxTreasureLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.treasures.ListByUser(ctx, userID, limit, offset)
}

// Get retrieves one of the user's treasures
func (s *TreasureService) Get(ctx context.Context, userID, id string) (*models.Treasure, error) {
	return ownedTreasure(ctx, s.treasures, userID, id)
}

// Create stores a new treasure in a nook
func (s *TreasureService) Create(ctx context.Context, userID, nookID string, in TreasureInput) (*models.Treasure, error) {
	if _, err := ownedNook(ctx, s.locations, userID, nookID); err != nil {
		return nil, err
	}
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	treasure := &models.Treasure{
		ID:             s.newID(),
		Name:           name,
		Description:    in.Description,
		NookLocationID: nookID,
		UserID:         userID,
		StoredAt:       in.StoredAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.treasures.Create(ctx, treasure); err != nil {
		return nil, fmt.Errorf("failed to create treasure: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTreasure, ID: treasure.ID, Action: ActionCreated}, treasuresKey(nookID))
	return treasure, nil
}

// Update replaces a treasure's editable fields. An empty NookLocationID keeps the current nook.
func (s *TreasureService) Update(ctx context.Context, userID, id string, in TreasureInput) (*models.Treasure, error) {
	treasure, err := ownedTreasure(ctx, s.treasures, userID, id)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}

	from := treasure.NookLocationID
	if in.NookLocationID != "" && in.NookLocationID != from {
		if _, err := ownedNook(ctx, s.locations, userID, in.NookLocationID); err != nil {
			return nil, err
		}
		treasure.NookLocationID = in.NookLocationID
	}

	treasure.Name = name
	treasure.Description = in.Description
	treasure.StoredAt = in.StoredAt
	treasure.UpdatedAt = s.now()
	if err := s.treasures.Update(ctx, treasure); err != nil {
		return nil, fmt.Errorf("failed to update treasure: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTreasure, ID: treasure.ID, Action: ActionUpdated},
		treasuresKey(from), treasuresKey(treasure.NookLocationID))
	return treasure, nil
}

// Delete removes a treasure together with its images and tag associations
func (s *TreasureService) Delete(ctx context.Context, userID, id string) error {
	treasure, err := ownedTreasure(ctx, s.treasures, userID, id)
	if err != nil {
		return err
	}

	if err := s.removeMedia(ctx, userID, models.EntityTreasure, id); err != nil {
		return err
	}
	if err := s.treasures.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete treasure: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceTreasure, ID: id, Action: ActionDeleted}, treasuresKey(treasure.NookLocationID))
	return nil
}
