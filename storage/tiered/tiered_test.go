package tiered_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulatech/payrecon/pkg/payrecon"
	"github.com/aulatech/payrecon/storage/tiered"
)

func TestNew_RequiresBothLevels(t *testing.T) {
	_, err := tiered.New(tiered.Config{Hot: payrecon.NewMemoryCache()})
	assert.Error(t, err)

	_, err = tiered.New(tiered.Config{Cold: payrecon.NewMemoryCache()})
	assert.Error(t, err)

	_, err = tiered.New(tiered.Config{
		Hot:  payrecon.NewMemoryCache(),
		Cold: payrecon.NewMemoryCache(),
	})
	assert.NoError(t, err)
}

func TestTieredCache_WriteThrough(t *testing.T) {
	ctx := context.Background()
	hot := payrecon.NewMemoryCache()
	cold := payrecon.NewMemoryCache()
	cache, err := tiered.New(tiered.Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	cache.Set(ctx, "k", "v", time.Minute)

	value, ok := hot.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	value, ok = cold.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	value, ok = cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestTieredCache_ColdHitBackfillsHot(t *testing.T) {
	ctx := context.Background()
	hot := payrecon.NewMemoryCache()
	cold := payrecon.NewMemoryCache()
	cache, err := tiered.New(tiered.Config{Hot: hot, Cold: cold})
	require.NoError(t, err)

	// Another instance wrote through to the shared level only.
	cold.Set(ctx, "k", "v", time.Minute)

	value, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)

	// The hit was backfilled into the hot level.
	value, ok = hot.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestTieredCache_Miss(t *testing.T) {
	ctx := context.Background()
	cache, err := tiered.New(tiered.Config{
		Hot:  payrecon.NewMemoryCache(),
		Cold: payrecon.NewMemoryCache(),
	})
	require.NoError(t, err)

	_, ok := cache.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestTieredCache_HotTTLCap(t *testing.T) {
	ctx := context.Background()
	hot := payrecon.NewMemoryCache()
	cold := payrecon.NewMemoryCache()
	cache, err := tiered.New(tiered.Config{Hot: hot, Cold: cold, HotTTL: 10 * time.Millisecond})
	require.NoError(t, err)

	cache.Set(ctx, "k", "v", time.Minute)
	time.Sleep(20 * time.Millisecond)

	// The hot copy expired at the cap; the cold copy carries the full
	// TTL and re-serves (and re-backfills) through the tiered reader.
	_, ok := hot.Get(ctx, "k")
	assert.False(t, ok)

	value, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestTieredCache_FrontsSlowLevelForGuard(t *testing.T) {
	ctx := context.Background()
	cold := payrecon.NewMemoryCache()
	cache, err := tiered.New(tiered.Config{Hot: payrecon.NewMemoryCache(), Cold: cold})
	require.NoError(t, err)

	// The tiered cache slots in wherever a plain Cache does.
	var _ payrecon.Cache = cache
	cache.Set(ctx, "webhook:processed:pay-1", "1", 5*time.Minute)

	value, ok := cache.Get(ctx, "webhook:processed:pay-1")
	require.True(t, ok)
	assert.Equal(t, "1", value)
}
