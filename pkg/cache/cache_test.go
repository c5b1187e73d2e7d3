package cache_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipping/pkg/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	hits, misses int
}

func (o *countingObserver) ObserveLookup(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestCache_GetWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := cache.New(5*time.Minute, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "provinces", []byte(`[1,2]`)))

	clock.Advance(4*time.Minute + 59*time.Second)
	got, ok := c.Get(ctx, "provinces")
	assert.True(t, ok)
	assert.Equal(t, []byte(`[1,2]`), got)
}

func TestCache_ExpiredIsAbsent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := cache.NewMemoryStore()
	c := cache.NewWithStore(store, 5*time.Minute, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "provinces", []byte(`[1]`)))
	clock.Advance(5 * time.Minute)

	_, ok := c.Get(ctx, "provinces")
	assert.False(t, ok, "entry at exactly TTL age is expired")
	assert.Equal(t, 1, store.Len(), "expired entries are not evicted")
}

func TestCache_SetOverwrites(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := cache.New(time.Minute, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("old")))
	clock.Advance(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "k", []byte("new")))

	got, ok := c.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "new", string(got))
}

func TestCache_DefaultTTL(t *testing.T) {
	c := cache.New(0)
	assert.Equal(t, cache.DefaultTTL, c.TTL())
	assert.Equal(t, 5*time.Minute, cache.DefaultTTL)
}

func TestCache_JSONHelpers(t *testing.T) {
	c := cache.New(time.Minute)
	ctx := context.Background()

	type province struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, cache.SetJSON(ctx, c, "p", []province{{ID: 16, Name: "Alger"}}))

	got, ok := cache.GetJSON[[]province](ctx, c, "p")
	require.True(t, ok)
	assert.Equal(t, "Alger", got[0].Name)

	_, ok = cache.GetJSON[[]province](ctx, c, "missing")
	assert.False(t, ok)
}

func TestCache_Observer(t *testing.T) {
	obs := &countingObserver{}
	c := cache.New(time.Minute, cache.WithObserver(obs))
	ctx := context.Background()

	c.Get(ctx, "k")
	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	c.Get(ctx, "k")

	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestCache_PeekIsNotObserved(t *testing.T) {
	obs := &countingObserver{}
	c := cache.New(time.Minute, cache.WithObserver(obs))
	ctx := context.Background()

	_, ok := c.Peek(ctx, "k")
	assert.False(t, ok)
	require.NoError(t, cache.SetJSON(ctx, c, "k", []string{"Alger"}))
	v, ok := cache.PeekJSON[[]string](ctx, c, "k")
	require.True(t, ok)
	assert.Equal(t, []string{"Alger"}, v)

	assert.Zero(t, obs.hits)
	assert.Zero(t, obs.misses)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := cache.New(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := cache.IntKey("communes", "wilaya_id", i%5)
			_ = c.Set(ctx, key, []byte("x"))
			c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	_, ok := c.Get(ctx, cache.IntKey("communes", "wilaya_id", 3))
	assert.True(t, ok)
}

func TestKey_Deterministic(t *testing.T) {
	a := url.Values{}
	a.Set("status", "Livré")
	a.Set("limit", "50")
	a.Set("offset", "0")

	b := url.Values{}
	b.Set("offset", "0")
	b.Set("limit", "50")
	b.Set("status", "Livré")

	assert.Equal(t, cache.Key("parcels", a), cache.Key("parcels", b))
}

func TestKey_IncludesEveryParameter(t *testing.T) {
	base := url.Values{"limit": {"50"}, "offset": {"0"}}
	other := url.Values{"limit": {"50"}, "offset": {"50"}}

	assert.NotEqual(t, cache.Key("parcels", base), cache.Key("parcels", other))
	assert.NotEqual(t, cache.IntKey("communes", "wilaya_id", 16), cache.IntKey("communes", "wilaya_id", 31))
	assert.NotEqual(t, cache.IntKey("communes", "wilaya_id", 16), cache.IntKey("centers", "wilaya_id", 16))
}

func TestKey_DropsEmptyValues(t *testing.T) {
	assert.Equal(t, "parcels", cache.Key("parcels", url.Values{"status": {""}}))
	assert.Equal(t, "parcels?status=x", cache.Key("parcels", url.Values{"status": {"x"}, "tracking": {""}}))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisClient(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
