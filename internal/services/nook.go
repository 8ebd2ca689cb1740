package services

import (
	"context"
	"fmt"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/picker"
)

// OutsideRealmMessage is returned when a nook is placed outside its realm
const OutsideRealmMessage = "Nook must be inside the realm"

// NookInput is the create/update payload of a nook
type NookInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	IsPublic    bool     `json:"is_public"`
}

// NookService handles nook business logic
type NookService struct {
	base
	locations LocationStore
	treasures TreasureStore
}

// NewNookService creates a new nook service
func NewNookService(locations LocationStore, treasures TreasureStore, opts Options) *NookService {
	return &NookService{base: newBase(opts), locations: locations, treasures: treasures}
}

// List retrieves the nooks of one of the user's realms
func (s *NookService) List(ctx context.Context, userID, realmID string) ([]*models.Location, error) {
	if _, err := ownedRealm(ctx, s.locations, userID, realmID); err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, s.opts.Cache, s.opts.Metrics, nooksKey(realmID), func() ([]*models.Location, error) {
		return s.locations.ListNooks(ctx, realmID)
	})
}

// Get retrieves one of the user's nooks
func (s *NookService) Get(ctx context.Context, userID, id string) (*models.Location, error) {
	return ownedNook(ctx, s.locations, userID, id)
}

// Create places a new nook inside a realm
func (s *NookService) Create(ctx context.Context, userID, realmID string, in NookInput) (*models.Location, error) {
	realm, err := ownedRealm(ctx, s.locations, userID, realmID)
	if err != nil {
		return nil, err
	}
	name, p, err := s.validate(realm, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	nook := &models.Location{
		ID:               s.newID(),
		Name:             name,
		Description:      in.Description,
		Latitude:         p.Latitude,
		Longitude:        p.Longitude,
		IsPublic:         in.IsPublic,
		ParentLocationID: &realm.ID,
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.locations.Create(ctx, nook); err != nil {
		return nil, fmt.Errorf("failed to create nook: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceNook, ID: nook.ID, Action: ActionCreated}, nooksKey(realm.ID))
	return nook, nil
}

// Update replaces a nook's editable fields; the point must stay inside the realm
func (s *NookService) Update(ctx context.Context, userID, id string, in NookInput) (*models.Location, error) {
	nook, err := ownedNook(ctx, s.locations, userID, id)
	if err != nil {
		return nil, err
	}
	realm, err := s.locations.GetByID(ctx, *nook.ParentLocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent realm: %w", err)
	}
	name, p, err := s.validate(realm, in)
	if err != nil {
		return nil, err
	}

	nook.Name = name
	nook.Description = in.Description
	nook.Latitude = p.Latitude
	nook.Longitude = p.Longitude
	nook.IsPublic = in.IsPublic
	nook.UpdatedAt = s.now()
	if err := s.locations.Update(ctx, nook); err != nil {
		return nil, fmt.Errorf("failed to update nook: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceNook, ID: nook.ID, Action: ActionUpdated}, nooksKey(realm.ID))
	return nook, nil
}

// Delete removes an empty nook. A nook holding treasures is refused and nothing is deleted.
func (s *NookService) Delete(ctx context.Context, userID, id string) error {
	nook, err := ownedNook(ctx, s.locations, userID, id)
	if err != nil {
		return err
	}

	hasTreasures, err := s.treasures.HasTreasures(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check nook contents: %w", err)
	}
	if hasTreasures {
		return apperr.Conflict("Nook contains treasures")
	}

	if err := s.removeMedia(ctx, userID, models.EntityLocation, id); err != nil {
		return err
	}
	if err := s.locations.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete nook: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceNook, ID: id, Action: ActionDeleted},
		nooksKey(*nook.ParentLocationID), treasuresKey(id))
	return nil
}

// validate binds the requested point through a picker bounded by the realm
func (s *NookService) validate(realm *models.Location, in NookInput) (string, geo.Point, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return "", geo.Point{}, err
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return "", geo.Point{}, err
	}

	opts := picker.Options{
		OutsideMessage: OutsideRealmMessage,
		OnCheck:        s.opts.Metrics.IncGeofenceCheck,
	}
	if circle, ok := realm.Circle(); ok {
		opts.Parent = &circle
	}
	if err := picker.New(opts).Pick(p); err != nil {
		return "", geo.Point{}, err
	}
	return name, p, nil
}
