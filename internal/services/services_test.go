package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"realmkeeper-backend/internal/apperr"
	"realmkeeper-backend/internal/cache"
	"realmkeeper-backend/internal/media"
	"realmkeeper-backend/internal/metrics"
	"realmkeeper-backend/internal/models"
	"realmkeeper-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

// countingLocations records Delete calls on top of the in-memory store
type countingLocations struct {
	*repository.InMemoryLocationRepository
	deletes int
}

func (c *countingLocations) Delete(ctx context.Context, id string) error {
	c.deletes++
	return c.InMemoryLocationRepository.Delete(ctx, id)
}

type countingTreasures struct {
	*repository.InMemoryTreasureRepository
	deletes int
}

func (c *countingTreasures) Delete(ctx context.Context, id string) error {
	c.deletes++
	return c.InMemoryTreasureRepository.Delete(ctx, id)
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (n *recordingNotifier) Publish(_ string, change Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) PublicURL(key string) string { return "https://cdn.test/" + key }

func (s *memStore) PresignPut(_ context.Context, key, _ string, _ int64) (*media.PresignedUpload, error) {
	return &media.PresignedUpload{URL: "https://upload.test/" + key, Key: key}, nil
}

type passCompressor struct{}

func (passCompressor) Compress(data []byte, _ media.Step) ([]byte, error) { return data, nil }

type fixture struct {
	locations *countingLocations
	treasures *countingTreasures
	tags      *repository.InMemoryTagRepository
	mediaRows *repository.InMemoryMediaRepository
	objects   *memStore
	notifier  *recordingNotifier
	cache     *cache.Memory
	metrics   *metrics.Metrics

	realms    *RealmService
	nooks     *NookService
	treasureS *TreasureService
	tagS      *TagService
	mediaS    *MediaService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		locations: &countingLocations{InMemoryLocationRepository: repository.NewInMemoryLocationRepository()},
		treasures: &countingTreasures{InMemoryTreasureRepository: repository.NewInMemoryTreasureRepository()},
		tags:      repository.NewInMemoryTagRepository(),
		mediaRows: repository.NewInMemoryMediaRepository(),
		objects:   &memStore{objects: map[string][]byte{}},
		notifier:  &recordingNotifier{},
		cache:     cache.NewMemory(0),
		metrics:   metrics.NewMetrics(),
	}

	opts := Options{Cache: f.cache, Notifier: f.notifier, Metrics: f.metrics}
	uploader := media.NewUploader(passCompressor{}, f.objects, f.mediaRows, media.UploaderConfig{})
	f.mediaS = NewMediaService(f.mediaRows, f.objects, uploader, f.locations, f.treasures, 0, opts)

	opts.Media = f.mediaS
	f.realms = NewRealmService(f.locations, opts)
	f.nooks = NewNookService(f.locations, f.treasures, opts)
	f.treasureS = NewTreasureService(f.treasures, f.locations, opts)
	f.tagS = NewTagService(f.tags, f.locations, f.treasures, opts)

	// distinct, increasing timestamps keep list ordering deterministic
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	for _, b := range []*base{&f.realms.base, &f.nooks.base, &f.treasureS.base, &f.tagS.base, &f.mediaS.base} {
		b.now = tick
	}
	return f
}

func (f *fixture) realm(t *testing.T, user string) *models.Location {
	t.Helper()
	r, err := f.realms.Create(context.Background(), user, RealmInput{
		Name: "Home", Latitude: ptr(40.0), Longitude: ptr(-3.0), Radius: ptr(100.0),
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) nook(t *testing.T, user, realmID string) *models.Location {
	t.Helper()
	n, err := f.nooks.Create(context.Background(), user, realmID, NookInput{
		Name: "Shelf", Latitude: ptr(40.0), Longitude: ptr(-3.0),
	})
	require.NoError(t, err)
	return n
}

func TestRealmService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input RealmInput
		msg   string
	}{
		{"missing name", RealmInput{Name: "  ", Latitude: ptr(1.0), Longitude: ptr(1.0), Radius: ptr(50.0)}, "Name is required"},
		{"missing point", RealmInput{Name: "Home", Radius: ptr(50.0)}, "Location is required"},
		{"latitude out of range", RealmInput{Name: "Home", Latitude: ptr(91.0), Longitude: ptr(1.0), Radius: ptr(50.0)}, "Invalid coordinates"},
		{"missing radius", RealmInput{Name: "Home", Latitude: ptr(1.0), Longitude: ptr(1.0)}, "Radius is required"},
		{"radius too small", RealmInput{Name: "Home", Latitude: ptr(1.0), Longitude: ptr(1.0), Radius: ptr(1.0)}, "Radius must be between 5 and 1000 meters"},
		{"radius too large", RealmInput{Name: "Home", Latitude: ptr(1.0), Longitude: ptr(1.0), Radius: ptr(5000.0)}, "Radius must be between 5 and 1000 meters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.realms.Create(ctx, "u1", tt.input)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Equal(t, tt.msg, apperr.Message(err, ""))
		})
	}

	realms, err := f.realms.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, realms)
}

func TestRealmService_ListIsCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.realm(t, "u1")
	first, err := f.realms.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.realms.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)

	f.realm(t, "u1")
	third, err := f.realms.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, third, 2, "create must invalidate the cached list")

	others, err := f.realms.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestRealmService_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	_, err := f.realms.Get(ctx, "u2", r.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = f.realms.Update(ctx, "u2", r.ID, RealmInput{Name: "x", Latitude: ptr(0.0), Longitude: ptr(0.0), Radius: ptr(10.0)})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	assert.True(t, apperr.IsKind(f.realms.Delete(ctx, "u2", r.ID), apperr.KindNotFound))
	assert.Zero(t, f.locations.deletes)
}

func TestRealmService_DeleteGuardedByNooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n := f.nook(t, "u1", r.ID)

	err := f.realms.Delete(ctx, "u1", r.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, "Realm contains nooks", apperr.Message(err, ""))
	assert.Zero(t, f.locations.deletes, "no delete may be issued")

	_, err = f.realms.Get(ctx, "u1", r.ID)
	require.NoError(t, err)

	require.NoError(t, f.nooks.Delete(ctx, "u1", n.ID))
	require.NoError(t, f.realms.Delete(ctx, "u1", r.ID))
	assert.Equal(t, 2, f.locations.deletes)

	_, err = f.realms.Get(ctx, "u1", r.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRealmService_DeleteRemovesImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	m, err := f.mediaS.Upload(ctx, "u1", models.EntityLocation, r.ID, []byte("img"), true)
	require.NoError(t, err)
	require.Contains(t, f.objects.objects, m.StoragePath)

	require.NoError(t, f.realms.Delete(ctx, "u1", r.ID))
	assert.NotContains(t, f.objects.objects, m.StoragePath)
	_, err = f.mediaRows.GetByID(ctx, m.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestRealmService_Nearby(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	near, err := f.realms.Nearby(ctx, "u1", r.Point(), 10)
	require.NoError(t, err)
	require.Len(t, near, 1)

	_, err = f.realms.Nearby(ctx, "u1", r.Point(), 0)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestNookService_PlacementInsideRealm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	t.Run("center is accepted", func(t *testing.T) {
		_, err := f.nooks.Create(ctx, "u1", r.ID, NookInput{Name: "Center", Latitude: ptr(40.0), Longitude: ptr(-3.0)})
		require.NoError(t, err)
	})

	t.Run("about 111 m away is rejected", func(t *testing.T) {
		_, err := f.nooks.Create(ctx, "u1", r.ID, NookInput{Name: "Far", Latitude: ptr(40.001), Longitude: ptr(-3.0)})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindOutOfBounds))
		assert.Equal(t, OutsideRealmMessage, apperr.Message(err, ""))
	})

	t.Run("update cannot move a nook outside", func(t *testing.T) {
		n := f.nook(t, "u1", r.ID)
		_, err := f.nooks.Update(ctx, "u1", n.ID, NookInput{Name: "Moved", Latitude: ptr(41.0), Longitude: ptr(-3.0)})
		assert.True(t, apperr.IsKind(err, apperr.KindOutOfBounds))

		got, err := f.nooks.Get(ctx, "u1", n.ID)
		require.NoError(t, err)
		assert.Equal(t, "Shelf", got.Name)
	})

	t.Run("nooks cannot nest in nooks", func(t *testing.T) {
		n := f.nook(t, "u1", r.ID)
		_, err := f.nooks.Create(ctx, "u1", n.ID, NookInput{Name: "Inner", Latitude: ptr(40.0), Longitude: ptr(-3.0)})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	nooks, err := f.nooks.List(ctx, "u1", r.ID)
	require.NoError(t, err)
	for _, n := range nooks {
		require.NotNil(t, n.ParentLocationID)
		assert.Equal(t, r.ID, *n.ParentLocationID)
	}
}

func TestNookService_DeleteGuardedByTreasures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n := f.nook(t, "u1", r.ID)

	tr, err := f.treasureS.Create(ctx, "u1", n.ID, TreasureInput{Name: "Lamp"})
	require.NoError(t, err)

	err = f.nooks.Delete(ctx, "u1", n.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	assert.Equal(t, "Nook contains treasures", apperr.Message(err, ""))
	assert.Zero(t, f.locations.deletes)

	require.NoError(t, f.treasureS.Delete(ctx, "u1", tr.ID))
	require.NoError(t, f.nooks.Delete(ctx, "u1", n.ID))
}

func TestTreasureService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n1 := f.nook(t, "u1", r.ID)
	n2 := f.nook(t, "u1", r.ID)

	t.Run("treasures live in nooks, not realms", func(t *testing.T) {
		_, err := f.treasureS.Create(ctx, "u1", r.ID, TreasureInput{Name: "Lamp"})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	tr, err := f.treasureS.Create(ctx, "u1", n1.ID, TreasureInput{Name: " Lamp "})
	require.NoError(t, err)
	assert.Equal(t, "Lamp", tr.Name)

	list, err := f.treasureS.List(ctx, "u1", n1.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	t.Run("move to another nook", func(t *testing.T) {
		stored := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
		moved, err := f.treasureS.Update(ctx, "u1", tr.ID, TreasureInput{Name: "Lamp", NookLocationID: n2.ID, StoredAt: &stored})
		require.NoError(t, err)
		assert.Equal(t, n2.ID, moved.NookLocationID)

		list, err := f.treasureS.List(ctx, "u1", n1.ID)
		require.NoError(t, err)
		assert.Empty(t, list, "the old nook's cached list must be invalidated")

		list, err = f.treasureS.List(ctx, "u1", n2.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("cannot move into another user's nook", func(t *testing.T) {
		foreignRealm := f.realm(t, "u2")
		foreign := f.nook(t, "u2", foreignRealm.ID)
		_, err := f.treasureS.Update(ctx, "u1", tr.ID, TreasureInput{Name: "Lamp", NookLocationID: foreign.ID})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("list by user paginates", func(t *testing.T) {
		all, total, err := f.treasureS.ListByUser(ctx, "u1", 0, -5)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, all, 1)
	})
}

func TestDiffTags(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		next       []string
		wantAdd    []string
		wantRemove []string
	}{
		{"swap one", []string{"a", "b"}, []string{"b", "c"}, []string{"c"}, []string{"a"}},
		{"reordered input", []string{"b", "a"}, []string{"c", "b"}, []string{"c"}, []string{"a"}},
		{"no change", []string{"a", "b"}, []string{"b", "a"}, []string{}, []string{}},
		{"clear all", []string{"a", "b"}, nil, []string{}, []string{"a", "b"}},
		{"from empty", nil, []string{"b", "a", "a"}, []string{"a", "b"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := DiffTags(tt.current, tt.next)
			assert.Equal(t, tt.wantAdd, diff.Add)
			assert.Equal(t, tt.wantRemove, diff.Remove)
		})
	}
}

func TestTagService_SetLocationTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	ids := map[string]string{}
	for _, name := range []string{"a", "b", "c"} {
		tag, err := f.tagS.Create(ctx, "u1", TagInput{Name: name, Color: "#00ff00"})
		require.NoError(t, err)
		assert.Equal(t, "#00FF00", tag.Color)
		ids[name] = tag.ID
	}

	_, err := f.tagS.SetLocationTags(ctx, "u1", r.ID, []string{ids["a"], ids["b"]})
	require.NoError(t, err)

	tags, err := f.tagS.SetLocationTags(ctx, "u1", r.ID, []string{ids["c"], ids["b"]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, names(tags))

	again, err := f.tagS.SetLocationTags(ctx, "u1", r.ID, []string{ids["b"], ids["c"]})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, names(again))

	t.Run("foreign tag is rejected before any change", func(t *testing.T) {
		foreign, err := f.tagS.Create(ctx, "u2", TagInput{Name: "x", Color: "#000000"})
		require.NoError(t, err)

		_, err = f.tagS.SetLocationTags(ctx, "u1", r.ID, []string{foreign.ID})
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

		tags, err := f.tagS.LocationTags(ctx, "u1", r.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"b", "c"}, names(tags))
	})

	t.Run("single add and remove", func(t *testing.T) {
		require.NoError(t, f.tagS.AddToLocation(ctx, "u1", r.ID, ids["a"]))
		require.NoError(t, f.tagS.AddToLocation(ctx, "u1", r.ID, ids["a"]))
		require.NoError(t, f.tagS.RemoveFromLocation(ctx, "u1", r.ID, ids["b"]))

		tags, err := f.tagS.LocationTags(ctx, "u1", r.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, names(tags))
	})
}

func TestTagService_TreasureTagsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n := f.nook(t, "u1", r.ID)
	tr, err := f.treasureS.Create(ctx, "u1", n.ID, TreasureInput{Name: "Lamp"})
	require.NoError(t, err)

	_, err = f.tagS.Create(ctx, "u1", TagInput{Name: "bad", Color: "red"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	tag, err := f.tagS.Create(ctx, "u1", TagInput{Name: "fragile", Color: "#AA0000"})
	require.NoError(t, err)

	tags, err := f.tagS.SetTreasureTags(ctx, "u1", tr.ID, []string{tag.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"fragile"}, names(tags))

	require.NoError(t, f.tagS.Delete(ctx, "u1", tag.ID))
	tags, err = f.tagS.TreasureTags(ctx, "u1", tr.ID)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestMediaService_SinglePrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	var ids []string
	for i := 0; i < 3; i++ {
		m, err := f.mediaS.Upload(ctx, "u1", models.EntityLocation, r.ID, []byte("img"), i == 0)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	for _, id := range []string{ids[2], ids[1], ids[2]} {
		require.NoError(t, f.mediaS.SetPrimary(ctx, "u1", id))

		list, err := f.mediaS.List(ctx, "u1", models.EntityLocation, r.ID)
		require.NoError(t, err)
		primaries := 0
		for _, m := range list {
			assert.NotEmpty(t, m.URL)
			if m.IsPrimary {
				primaries++
				assert.Equal(t, id, m.ID)
			}
		}
		assert.Equal(t, 1, primaries)
	}

	assert.True(t, apperr.IsKind(f.mediaS.SetPrimary(ctx, "u2", ids[0]), apperr.KindNotFound))
}

func TestMediaService_PresignAndRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n := f.nook(t, "u1", r.ID)
	tr, err := f.treasureS.Create(ctx, "u1", n.ID, TreasureInput{Name: "Lamp"})
	require.NoError(t, err)

	upload, err := f.mediaS.PresignUpload(ctx, "u1", PresignRequest{
		EntityType: models.EntityTreasure, EntityID: tr.ID, ContentType: "image/png", SizeBytes: 2048,
	})
	require.NoError(t, err)
	assert.Contains(t, upload.Key, "u1/treasure/"+tr.ID+"/")
	assert.Contains(t, upload.Key, ".png")

	_, err = f.mediaS.PresignUpload(ctx, "u1", PresignRequest{
		EntityType: models.EntityTreasure, EntityID: tr.ID, ContentType: "image/gif", SizeBytes: 2048,
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	m, err := f.mediaS.Register(ctx, "u1", RegisterRequest{
		EntityType: models.EntityTreasure, EntityID: tr.ID, StoragePath: upload.Key,
		MimeType: "image/png", FileSize: 2048, IsPrimary: true,
	})
	require.NoError(t, err)
	assert.True(t, m.IsPrimary)

	for _, path := range []string{"u2/treasure/" + tr.ID + "/x.png", "u1/treasure/" + tr.ID + "/", "u1/treasure/" + tr.ID + "/a/b.png"} {
		_, err := f.mediaS.Register(ctx, "u1", RegisterRequest{
			EntityType: models.EntityTreasure, EntityID: tr.ID, StoragePath: path, MimeType: "image/png",
		})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), path)
	}

	require.NoError(t, f.mediaS.Delete(ctx, "u1", m.ID))
	list, err := f.mediaS.List(ctx, "u1", models.EntityTreasure, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMediaService_RejectsOversizedUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")

	big := make([]byte, f.mediaS.MaxUploadBytes()+1)
	_, err := f.mediaS.Upload(ctx, "u1", models.EntityLocation, r.ID, big, false)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, f.objects.objects)
}

func TestServices_PublishChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.realm(t, "u1")
	n := f.nook(t, "u1", r.ID)
	require.NoError(t, f.nooks.Delete(ctx, "u1", n.ID))

	assert.Equal(t, []Change{
		{Resource: ResourceRealm, ID: r.ID, Action: ActionCreated},
		{Resource: ResourceNook, ID: n.ID, Action: ActionCreated},
		{Resource: ResourceNook, ID: n.ID, Action: ActionDeleted},
	}, f.notifier.changes)
}

func names(tags []*models.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}
