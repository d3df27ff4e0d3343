package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/model"
)

func newCacheUnderTest(src *fakeSource, ttl time.Duration) (*CacheService, *time.Time) {
	svc := NewCacheService(New(src), ttl)
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	return svc, &clock
}

func TestCacheService_HitAndMissAreIdentical(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: factorEntries()}
	svc, _ := newCacheUnderTest(src, time.Hour)

	miss, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	hit, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls, "second read must be served from cache")
	assert.Equal(t, miss, hit)
}

func TestCacheService_TTLExpiryTriggersReload(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: factorEntries()}
	svc, clock := newCacheUnderTest(src, 30*time.Minute)

	_, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	*clock = clock.Add(29 * time.Minute)
	_, err = svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "entry still fresh")

	*clock = clock.Add(2 * time.Minute)
	_, err = svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "expired entry must reload")
}

func TestCacheService_InvalidateDropsCategory(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: factorEntries()}
	svc, _ := newCacheUnderTest(src, time.Hour)

	_, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	// A factor write lands; the hook invalidates and the changed multiplier
	// is visible on the next read.
	src.entries[3].Multiplier = decimal.NewFromFloat(1.4)
	svc.Invalidate("b-1", model.CategoryMaterial)

	f, err := svc.Resolve(context.Background(), "b-1", model.CategoryMaterial, "eiche")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, "1.4", f.Multiplier.String())
}

func TestCacheService_InvalidateOtherBusinessUntouched(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: factorEntries()}
	svc, _ := newCacheUnderTest(src, time.Hour)

	_, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	_, err = svc.Table(context.Background(), "b-2")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)

	svc.Invalidate("b-2", model.CategoryMaterial)

	_, err = svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "b-1 entries must survive a b-2 invalidation")
}

func TestCacheService_InvalidateAll(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: factorEntries()}
	svc, _ := newCacheUnderTest(src, time.Hour)

	_, err := svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	svc.InvalidateAll()

	_, err = svc.Table(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCacheService_Resolve(t *testing.T) {
	t.Parallel()

	svc, _ := newCacheUnderTest(&fakeSource{entries: factorEntries()}, time.Hour)

	f, err := svc.Resolve(context.Background(), "b-1", model.CategorySurface, "geoelt")
	require.NoError(t, err)
	assert.Equal(t, "1.15", f.Multiplier.String())
	assert.Equal(t, model.Tier1, f.Tier)

	_, err = svc.Resolve(context.Background(), "b-1", model.CategorySurface, "lackiert")
	var unknown *UnknownFactorError
	assert.ErrorAs(t, err, &unknown)
}
