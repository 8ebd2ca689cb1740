package repository

import (
	"context"
	"sort"
	"sync"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/models"
)

// InMemoryLocationRepository is an in-memory implementation of the location store.
// Used for testing and development.
type InMemoryLocationRepository struct {
	mu        sync.RWMutex
	locations map[string]*models.Location
}

// NewInMemoryLocationRepository creates a new in-memory location repository.
func NewInMemoryLocationRepository() *InMemoryLocationRepository {
	return &InMemoryLocationRepository{locations: make(map[string]*models.Location)}
}

func (r *InMemoryLocationRepository) Create(_ context.Context, loc *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[loc.ID]; ok {
		return apperr.Conflict("location already exists")
	}
	c := *loc
	r.locations[loc.ID] = &c
	return nil
}

func (r *InMemoryLocationRepository) GetByID(_ context.Context, id string) (*models.Location, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.locations[id]
	if !ok {
		return nil, notFound("location")
	}
	c := *loc
	return &c, nil
}

func (r *InMemoryLocationRepository) ListRealms(_ context.Context, userID string) ([]*models.Location, error) {
	return r.filter(func(l *models.Location) bool {
		return l.UserID == userID && l.ParentLocationID == nil
	}), nil
}

func (r *InMemoryLocationRepository) ListNooks(_ context.Context, realmID string) ([]*models.Location, error) {
	return r.filter(func(l *models.Location) bool {
		return l.ParentLocationID != nil && *l.ParentLocationID == realmID
	}), nil
}

func (r *InMemoryLocationRepository) RealmsNearby(_ context.Context, userID string, p geo.Point, radius float64) ([]*models.Location, error) {
	return r.filter(func(l *models.Location) bool {
		return l.UserID == userID && l.ParentLocationID == nil && geo.Contains(p, radius, l.Point())
	}), nil
}

func (r *InMemoryLocationRepository) Update(_ context.Context, loc *models.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.locations[loc.ID]
	if !ok {
		return notFound("location")
	}
	c := *loc
	c.ParentLocationID = existing.ParentLocationID
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	r.locations[loc.ID] = &c
	return nil
}

func (r *InMemoryLocationRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.locations[id]; !ok {
		return notFound("location")
	}
	delete(r.locations, id)
	return nil
}

func (r *InMemoryLocationRepository) HasNooks(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.locations {
		if l.ParentLocationID != nil && *l.ParentLocationID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryLocationRepository) filter(keep func(*models.Location) bool) []*models.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Location{}
	for _, l := range r.locations {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// InMemoryTreasureRepository is an in-memory implementation of the treasure store.
type InMemoryTreasureRepository struct {
	mu        sync.RWMutex
	treasures map[string]*models.Treasure
}

// NewInMemoryTreasureRepository creates a new in-memory treasure repository.
func NewInMemoryTreasureRepository() *InMemoryTreasureRepository {
	return &InMemoryTreasureRepository{treasures: make(map[string]*models.Treasure)}
}

func (r *InMemoryTreasureRepository) Create(_ context.Context, t *models.Treasure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.treasures[t.ID]; ok {
		return apperr.Conflict("treasure already exists")
	}
	c := *t
	r.treasures[t.ID] = &c
	return nil
}

func (r *InMemoryTreasureRepository) GetByID(_ context.Context, id string) (*models.Treasure, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.treasures[id]
	if !ok {
		return nil, notFound("treasure")
	}
	c := *t
	return &c, nil
}

func (r *InMemoryTreasureRepository) ListByNook(_ context.Context, nookID string) ([]*models.Treasure, error) {
	return r.filter(func(t *models.Treasure) bool { return t.NookLocationID == nookID }), nil
}

func (r *InMemoryTreasureRepository) ListByUser(_ context.Context, userID string, limit, offset int) ([]*models.Treasure, int, error) {
	all := r.filter(func(t *models.Treasure) bool { return t.UserID == userID })
	total := len(all)
	if offset >= total {
		return []*models.Treasure{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *InMemoryTreasureRepository) Update(_ context.Context, t *models.Treasure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.treasures[t.ID]
	if !ok {
		return notFound("treasure")
	}
	c := *t
	c.UserID = existing.UserID
	c.CreatedAt = existing.CreatedAt
	r.treasures[t.ID] = &c
	return nil
}

func (r *InMemoryTreasureRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.treasures[id]; !ok {
		return notFound("treasure")
	}
	delete(r.treasures, id)
	return nil
}

func (r *InMemoryTreasureRepository) HasTreasures(_ context.Context, nookID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.treasures {
		if t.NookLocationID == nookID {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemoryTreasureRepository) filter(keep func(*models.Treasure) bool) []*models.Treasure {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Treasure{}
	for _, t := range r.treasures {
		if keep(t) {
			c := *t
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// InMemoryTagRepository is an in-memory implementation of the tag store and its join tables.
type InMemoryTagRepository struct {
	mu           sync.RWMutex
	tags         map[string]*models.Tag
	locationTags map[string]map[string]struct{}
	treasureTags map[string]map[string]struct{}
}

// NewInMemoryTagRepository creates a new in-memory tag repository.
func NewInMemoryTagRepository() *InMemoryTagRepository {
	return &InMemoryTagRepository{
		tags:         make(map[string]*models.Tag),
		locationTags: make(map[string]map[string]struct{}),
		treasureTags: make(map[string]map[string]struct{}),
	}
}

func (r *InMemoryTagRepository) Create(_ context.Context, tag *models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tags[tag.ID]; ok {
		return apperr.Conflict("tag already exists")
	}
	c := *tag
	r.tags[tag.ID] = &c
	return nil
}

func (r *InMemoryTagRepository) GetByID(_ context.Context, id string) (*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tag, ok := r.tags[id]
	if !ok {
		return nil, notFound("tag")
	}
	c := *tag
	return &c, nil
}

func (r *InMemoryTagRepository) ListByUser(_ context.Context, userID string) ([]*models.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Tag{}
	for _, tag := range r.tags {
		if tag.UserID == userID {
			c := *tag
			out = append(out, &c)
		}
	}
	sortTags(out)
	return out, nil
}

func (r *InMemoryTagRepository) Update(_ context.Context, tag *models.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tags[tag.ID]
	if !ok {
		return notFound("tag")
	}
	existing.Name = tag.Name
	existing.Color = tag.Color
	return nil
}

func (r *InMemoryTagRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tags[id]; !ok {
		return notFound("tag")
	}
	delete(r.tags, id)
	for _, links := range []map[string]map[string]struct{}{r.locationTags, r.treasureTags} {
		for _, set := range links {
			delete(set, id)
		}
	}
	return nil
}

func (r *InMemoryTagRepository) LocationTags(_ context.Context, locationID string) ([]*models.Tag, error) {
	return r.linked(r.locationTags, locationID), nil
}

func (r *InMemoryTagRepository) TreasureTags(_ context.Context, treasureID string) ([]*models.Tag, error) {
	return r.linked(r.treasureTags, treasureID), nil
}

func (r *InMemoryTagRepository) AddLocationTag(ctx context.Context, locationID, tagID string) error {
	return r.ApplyLocationTagDiff(ctx, locationID, []string{tagID}, nil)
}

func (r *InMemoryTagRepository) RemoveLocationTag(ctx context.Context, locationID, tagID string) error {
	return r.ApplyLocationTagDiff(ctx, locationID, nil, []string{tagID})
}

func (r *InMemoryTagRepository) AddTreasureTag(ctx context.Context, treasureID, tagID string) error {
	return r.ApplyTreasureTagDiff(ctx, treasureID, []string{tagID}, nil)
}

func (r *InMemoryTagRepository) RemoveTreasureTag(ctx context.Context, treasureID, tagID string) error {
	return r.ApplyTreasureTagDiff(ctx, treasureID, nil, []string{tagID})
}

func (r *InMemoryTagRepository) ApplyLocationTagDiff(_ context.Context, locationID string, add, remove []string) error {
	return r.apply(r.locationTags, locationID, add, remove)
}

func (r *InMemoryTagRepository) ApplyTreasureTagDiff(_ context.Context, treasureID string, add, remove []string) error {
	return r.apply(r.treasureTags, treasureID, add, remove)
}

// apply validates every tag before touching the set so a failed diff changes nothing
func (r *InMemoryTagRepository) apply(links map[string]map[string]struct{}, ownerID string, add, remove []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range add {
		if _, ok := r.tags[id]; !ok {
			return notFound("tag")
		}
	}

	set, ok := links[ownerID]
	if !ok {
		set = make(map[string]struct{})
		links[ownerID] = set
	}
	for _, id := range add {
		set[id] = struct{}{}
	}
	for _, id := range remove {
		delete(set, id)
	}
	return nil
}

func (r *InMemoryTagRepository) linked(links map[string]map[string]struct{}, ownerID string) []*models.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Tag{}
	for id := range links[ownerID] {
		if tag, ok := r.tags[id]; ok {
			c := *tag
			out = append(out, &c)
		}
	}
	sortTags(out)
	return out
}

func sortTags(tags []*models.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name == tags[j].Name {
			return tags[i].ID < tags[j].ID
		}
		return tags[i].Name < tags[j].Name
	})
}

// InMemoryMediaRepository is an in-memory implementation of the media store.
type InMemoryMediaRepository struct {
	mu    sync.RWMutex
	media map[string]*models.Media
}

// NewInMemoryMediaRepository creates a new in-memory media repository.
func NewInMemoryMediaRepository() *InMemoryMediaRepository {
	return &InMemoryMediaRepository{media: make(map[string]*models.Media)}
}

func (r *InMemoryMediaRepository) Create(_ context.Context, m *models.Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.media[m.ID]; ok {
		return apperr.Conflict("media already exists")
	}
	if m.IsPrimary {
		for _, other := range r.media {
			if other.EntityType == m.EntityType && other.EntityID == m.EntityID && other.IsPrimary {
				return apperr.Conflict("entity already has a primary image")
			}
		}
	}
	c := *m
	r.media[m.ID] = &c
	return nil
}

func (r *InMemoryMediaRepository) GetByID(_ context.Context, id string) (*models.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.media[id]
	if !ok {
		return nil, notFound("media")
	}
	c := *m
	return &c, nil
}

func (r *InMemoryMediaRepository) ListByEntity(_ context.Context, entityType models.EntityType, entityID string) ([]*models.Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*models.Media{}
	for _, m := range r.media {
		if m.EntityType == entityType && m.EntityID == entityID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryMediaRepository) SetPrimary(_ context.Context, entityType models.EntityType, entityID, mediaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.media[mediaID]
	if !ok || target.EntityType != entityType || target.EntityID != entityID {
		return notFound("media")
	}
	for _, m := range r.media {
		if m.EntityType == entityType && m.EntityID == entityID {
			m.IsPrimary = m.ID == mediaID
		}
	}
	return nil
}

func (r *InMemoryMediaRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.media[id]; !ok {
		return notFound("media")
	}
	delete(r.media, id)
	return nil
}
