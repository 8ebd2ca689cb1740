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

// RealmInput is the create/update payload of a realm
type RealmInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Radius      *float64 `json:"radius"`
	IsPublic    bool     `json:"is_public"`
}

// RealmService handles realm business logic
type RealmService struct {
	base
	locations LocationStore
}

// NewRealmService creates a new realm service
func NewRealmService(locations LocationStore, opts Options) *RealmService {
	if opts.MinRadius <= 0 {
		opts.MinRadius = picker.DefaultMinRadius
	}
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = picker.DefaultMaxRadius
	}
	return &RealmService{base: newBase(opts), locations: locations}
}

// RadiusBounds returns the allowed realm radius range in meters
func (s *RealmService) RadiusBounds() (min, max float64) {
	return s.opts.MinRadius, s.opts.MaxRadius
}

// List retrieves the user's realms
func (s *RealmService) List(ctx context.Context, userID string) ([]*models.Location, error) {
	return cache.Fetch(ctx, s.opts.Cache, s.opts.Metrics, realmsKey(userID), func() ([]*models.Location, error) {
		return s.locations.ListRealms(ctx, userID)
	})
}

// Get retrieves one of the user's realms
func (s *RealmService) Get(ctx context.Context, userID, id string) (*models.Location, error) {
	return ownedRealm(ctx, s.locations, userID, id)
}

// Nearby retrieves the user's realms whose center is within radius meters of p
func (s *RealmService) Nearby(ctx context.Context, userID string, p geo.Point, radius float64) ([]*models.Location, error) {
	if err := p.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid coordinates", err)
	}
	if !(radius > 0) {
		return nil, apperr.Validation("Radius must be positive")
	}
	return s.locations.RealmsNearby(ctx, userID, p, radius)
}

// Create creates a new realm
func (s *RealmService) Create(ctx context.Context, userID string, in RealmInput) (*models.Location, error) {
	name, center, radius, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	realm := &models.Location{
		ID:          s.newID(),
		Name:        name,
		Description: in.Description,
		Latitude:    center.Latitude,
		Longitude:   center.Longitude,
		Radius:      &radius,
		IsPublic:    in.IsPublic,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.locations.Create(ctx, realm); err != nil {
		return nil, fmt.Errorf("failed to create realm: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceRealm, ID: realm.ID, Action: ActionCreated}, realmsKey(userID))
	return realm, nil
}

// Update replaces a realm's editable fields. Existing nooks are not re-checked.
func (s *RealmService) Update(ctx context.Context, userID, id string, in RealmInput) (*models.Location, error) {
	realm, err := ownedRealm(ctx, s.locations, userID, id)
	if err != nil {
		return nil, err
	}
	name, center, radius, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	realm.Name = name
	realm.Description = in.Description
	realm.Latitude = center.Latitude
	realm.Longitude = center.Longitude
	realm.Radius = &radius
	realm.IsPublic = in.IsPublic
	realm.UpdatedAt = s.now()
	if err := s.locations.Update(ctx, realm); err != nil {
		return nil, fmt.Errorf("failed to update realm: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceRealm, ID: realm.ID, Action: ActionUpdated}, realmsKey(userID))
	return realm, nil
}

// Delete removes an empty realm. A realm with nooks is refused and nothing is deleted.
func (s *RealmService) Delete(ctx context.Context, userID, id string) error {
	if _, err := ownedRealm(ctx, s.locations, userID, id); err != nil {
		return err
	}

	hasNooks, err := s.locations.HasNooks(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check realm contents: %w", err)
	}
	if hasNooks {
		return apperr.Conflict("Realm contains nooks")
	}

	if err := s.removeMedia(ctx, userID, models.EntityLocation, id); err != nil {
		return err
	}
	if err := s.locations.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete realm: %w", err)
	}

	s.changed(ctx, userID, Change{Resource: ResourceRealm, ID: id, Action: ActionDeleted}, realmsKey(userID), nooksKey(id))
	return nil
}

func (s *RealmService) validate(in RealmInput) (string, geo.Point, float64, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return "", geo.Point{}, 0, err
	}
	center, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return "", geo.Point{}, 0, err
	}
	if in.Radius == nil {
		return "", geo.Point{}, 0, apperr.Validation("Radius is required")
	}
	if r := *in.Radius; !(r >= s.opts.MinRadius && r <= s.opts.MaxRadius) {
		return "", geo.Point{}, 0, apperr.Newf(apperr.KindValidation,
			"Radius must be between %g and %g meters", s.opts.MinRadius, s.opts.MaxRadius)
	}
	return name, center, *in.Radius, nil
}
