// Package services holds the catalogue's business rules: ownership, the
// Realm/Nook/Treasure hierarchy, tag reconciliation and media bookkeeping.
package services

import (
	"context"
	"strings"
	"time"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/metrics"
	"realmkeeper-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocationStore persists realms and nooks
type LocationStore interface {
	Create(ctx context.Context, loc *models.Location) error
	GetByID(ctx context.Context, id string) (*models.Location, error)
	ListRealms(ctx context.Context, userID string) ([]*models.Location, error)
	ListNooks(ctx context.Context, realmID string) ([]*models.Location, error)
	RealmsNearby(ctx context.Context, userID string, p geo.Point, radius float64) ([]*models.Location, error)
	Update(ctx context.Context, loc *models.Location) error
	Delete(ctx context.Context, id string) error
	HasNooks(ctx context.Context, id string) (bool, error)
}

// TreasureStore persists treasures
type TreasureStore interface {
	Create(ctx context.Context, t *models.Treasure) error
	GetByID(ctx context.Context, id string) (*models.Treasure, error)
	ListByNook(ctx context.Context, nookID string) ([]*models.Treasure, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Treasure, int, error)
	Update(ctx context.Context, t *models.Treasure) error
	Delete(ctx context.Context, id string) error
	HasTreasures(ctx context.Context, nookID string) (bool, error)
}

// TagStore persists tags and their associations
type TagStore interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id string) (*models.Tag, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Tag, error)
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id string) error
	LocationTags(ctx context.Context, locationID string) ([]*models.Tag, error)
	TreasureTags(ctx context.Context, treasureID string) ([]*models.Tag, error)
	AddLocationTag(ctx context.Context, locationID, tagID string) error
	RemoveLocationTag(ctx context.Context, locationID, tagID string) error
	AddTreasureTag(ctx context.Context, treasureID, tagID string) error
	RemoveTreasureTag(ctx context.Context, treasureID, tagID string) error
	ApplyLocationTagDiff(ctx context.Context, locationID string, add, remove []string) error
	ApplyTreasureTagDiff(ctx context.Context, treasureID string, add, remove []string) error
}

// MediaStore persists media rows
type MediaStore interface {
	Create(ctx context.Context, m *models.Media) error
	GetByID(ctx context.Context, id string) (*models.Media, error)
	ListByEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]*models.Media, error)
	SetPrimary(ctx context.Context, entityType models.EntityType, entityID, mediaID string) error
	Delete(ctx context.Context, id string) error
}

// MediaRemover drops every image attached to an entity before the entity is deleted
type MediaRemover interface {
	RemoveForEntity(ctx context.Context, userID string, entityType models.EntityType, entityID string) error
}

// Change resources and actions pushed to connected clients
const (
	ResourceRealm    = "realm"
	ResourceNook     = "nook"
	ResourceTreasure = "treasure"
	ResourceTag      = "tag"
	ResourceMedia    = "media"

	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Change tells a client which cached query to refetch
type Change struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Action   string `json:"action"`
}

// Notifier delivers changes to a user's connected clients
type Notifier interface {
	Publish(userID string, change Change)
}

// Options are the collaborators shared by every service. All fields are optional.
type Options struct {
	Cache    cache.Cache
	Notifier Notifier
	Metrics  *metrics.Metrics
	Media    MediaRemover

	// MinRadius and MaxRadius bound a Realm's radius in meters
	MinRadius float64
	MaxRadius float64
}

// base carries the shared collaborators and clock
type base struct {
	opts  Options
	now   func() time.Time
	newID func() string
}

func newBase(opts Options) base {
	return base{
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// changed drops stale cache keys and tells the user's clients
func (b *base) changed(ctx context.Context, userID string, change Change, keys ...string) {
	if b.opts.Cache != nil && len(keys) > 0 {
		if err := b.opts.Cache.Delete(ctx, keys...); err != nil {
			log.Warn().Err(err).Strs("keys", keys).Msg("Failed to invalidate query cache")
		}
	}
	if b.opts.Notifier != nil {
		b.opts.Notifier.Publish(userID, change)
	}
}

func (b *base) removeMedia(ctx context.Context, userID string, entityType models.EntityType, entityID string) error {
	if b.opts.Media == nil {
		return nil
	}
	return b.opts.Media.RemoveForEntity(ctx, userID, entityType, entityID)
}

// Cache keys
func realmsKey(userID string) string    { return cache.Key("realms", userID) }
func nooksKey(realmID string) string    { return cache.Key("nooks", realmID) }
func treasuresKey(nookID string) string { return cache.Key("treasures", nookID) }
func tagsKey(userID string) string      { return cache.Key("tags", userID) }
func mediaKey(t models.EntityType, id string) string {
	return cache.Key("media", string(t), id)
}

// ownedLocation loads a location the user owns; other users' rows are not found
func ownedLocation(ctx context.Context, store LocationStore, userID, id string) (*models.Location, error) {
	loc, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.UserID != userID {
		return nil, apperr.NotFound("location not found")
	}
	return loc, nil
}

func ownedRealm(ctx context.Context, store LocationStore, userID, id string) (*models.Location, error) {
	loc, err := ownedLocation(ctx, store, userID, id)
	if err != nil {
		return nil, err
	}
	if !loc.IsRealm() {
		return nil, apperr.NotFound("realm not found")
	}
	return loc, nil
}

func ownedNook(ctx context.Context, store LocationStore, userID, id string) (*models.Location, error) {
	loc, err := ownedLocation(ctx, store, userID, id)
	if err != nil {
		return nil, err
	}
	if loc.IsRealm() {
		return nil, apperr.NotFound("nook not found")
	}
	return loc, nil
}

func ownedTreasure(ctx context.Context, store TreasureStore, userID, id string) (*models.Treasure, error) {
	t, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, apperr.NotFound("treasure not found")
	}
	return t, nil
}

// point validates an optional coordinate pair from a request
func point(lat, lng *float64) (geo.Point, error) {
	if lat == nil || lng == nil {
		return geo.Point{}, apperr.Validation("Location is required")
	}
	p := geo.Point{Latitude: *lat, Longitude: *lng}
	if err := p.Validate(); err != nil {
		return geo.Point{}, apperr.Wrap(apperr.KindValidation, "Invalid coordinates", err)
	}
	return p, nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("Name is required")
	}
	return name, nil
}
