package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"realmkeeper-backend/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	var got []row
	ok, err := c.Get(ctx, "realms:u1", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "realms:u1", []row{{ID: "r1", Name: "Home"}}))
	ok, err = c.Get(ctx, "realms:u1", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []row{{ID: "r1", Name: "Home"}}, got)

	require.NoError(t, c.Delete(ctx, "realms:u1", "unknown"))
	ok, err = c.Get(ctx, "realms:u1", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory(time.Minute)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", 1))

	var v int
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetch(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	m := metrics.NewMetrics()

	loads := 0
	load := func() ([]row, error) {
		loads++
		return []row{{ID: "n1", Name: "Shelf"}}, nil
	}

	first, err := Fetch(ctx, c, m, Key("nooks", "r1"), load)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, m, Key("nooks", "r1"), load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, loads)

	require.NoError(t, c.Delete(ctx, Key("nooks", "r1")))
	_, err = Fetch(ctx, c, m, Key("nooks", "r1"), load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestFetch_LoadErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, nil, "k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	var v int
	ok, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetch_NilCacheAlwaysLoads(t *testing.T) {
	loads := 0
	for i := 0; i < 3; i++ {
		_, err := Fetch(context.Background(), nil, nil, "k", func() (int, error) {
			loads++
			return loads, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, loads)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "realms:u1", Key("realms", "u1"))
	assert.Equal(t, "treasures:user:u1", Key("treasures", "user", "u1"))
}

// Requires a Redis instance on localhost:6379; skipped otherwise.
func TestRedis_RoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	c := NewRedis(client, time.Minute)
	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	require.NoError(t, c.Set(ctx, key, []row{{ID: "t1", Name: "Lamp"}}))
	var got []row
	ok, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Lamp", got[0].Name)

	require.NoError(t, c.Delete(ctx, key))
	ok, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
