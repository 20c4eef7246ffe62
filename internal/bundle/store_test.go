package bundle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/ml"
)

func trainedForest(t *testing.T, seed int64) *ml.Forest {
	t.Helper()
	x := make([][]float64, 60)
	y := make([]float64, 60)
	for i := range x {
		x[i] = []float64{float64(i % 9), float64(i % 4)}
		y[i] = 2 * float64(i%9)
	}
	f, err := ml.TrainRegressor(x, y, ml.Config{NumTrees: 5, Seed: seed})
	require.NoError(t, err)
	return f
}

func sampleBundle(t *testing.T) *Bundle {
	t.Helper()
	f := trainedForest(t, 1)
	return &Bundle{
		FeatureColumns: []string{"a", "b"},
		Groups: []GroupEntry{
			{
				Key:    domain.GroupKey{Category: "Capacitor", Size: "0402", Manufacturer: "murata"},
				Models: GroupModels{RegUsage: f, RegDays: f, Cls6m: f, Cls12m: f},
			},
			{
				Key:    domain.GroupKey{Category: "Capacitor", Size: "0402", Manufacturer: "tdk"},
				Models: GroupModels{RegUsage: f, RegDays: f, Cls6m: f, Cls12m: f},
			},
			{
				Key:    domain.GroupKey{Category: "Resistor", Size: "0603", Manufacturer: "yageo"},
				Models: GroupModels{RegUsage: f, RegDays: f, Cls6m: f, Cls12m: f},
			},
		},
		Meta: domain.BundleMeta{
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Years:     []int{2024, 2025},
			Groups:    3,
			Features:  2,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		store := NewStore(t.TempDir())
		b := sampleBundle(t)

		require.NoError(t, store.Save(b, SaveOptions{Compress: compress}))

		loaded, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, b.FeatureColumns, loaded.FeatureColumns)
		assert.Equal(t, b.Meta.Years, loaded.Meta.Years)
		require.Len(t, loaded.Groups, 3)

		// Round-tripped forests must predict identically.
		x := []float64{3, 1}
		assert.Equal(t,
			b.Groups[0].Models.RegUsage.Predict(x),
			loaded.Groups[0].Models.RegUsage.Predict(x))
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	b := sampleBundle(t)

	require.NoError(t, NewStore(dirA).Save(b, SaveOptions{Compress: true}))
	require.NoError(t, NewStore(dirB).Save(b, SaveOptions{Compress: true}))

	bytesA, err := os.ReadFile(filepath.Join(dirA, BundleFileName))
	require.NoError(t, err)
	bytesB, err := os.ReadFile(filepath.Join(dirB, BundleFileName))
	require.NoError(t, err)
	assert.Equal(t, bytesA, bytesB)
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrBundleUnavailable)
}

func TestLoadCachesByModTime(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(sampleBundle(t), SaveOptions{}))

	first, err := store.Load()
	require.NoError(t, err)
	second, err := store.Load()
	require.NoError(t, err)
	assert.Same(t, first, second)

	// Rewrite with a bumped mtime; the store must re-decode.
	b2 := sampleBundle(t)
	b2.FeatureColumns = []string{"a", "b", "c"}
	require.NoError(t, store.Save(b2, SaveOptions{}))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(store.Path(), future, future))

	third, err := store.Load()
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Len(t, third.FeatureColumns, 3)
}

func TestMetaSidecar(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(sampleBundle(t), SaveOptions{SaveMeta: true}))

	payload, err := os.ReadFile(filepath.Join(dir, MetaFileName))
	require.NoError(t, err)
	assert.Contains(t, string(payload), "created_at")
}

func TestResolveFallbackChain(t *testing.T) {
	b := sampleBundle(t)

	// Exact match.
	m, ok := b.Resolve(domain.GroupKey{Category: "Capacitor", Size: "0402", Manufacturer: "tdk"})
	require.True(t, ok)
	assert.Same(t, &b.Groups[1].Models, m)

	// Unseen manufacturer falls back to the same (category, size) family.
	m, ok = b.Resolve(domain.GroupKey{Category: "Capacitor", Size: "0402", Manufacturer: "samsung"})
	require.True(t, ok)
	assert.Same(t, &b.Groups[0].Models, m)

	// Fully unseen key falls back to the first entry.
	m, ok = b.Resolve(domain.GroupKey{Category: "Inductor", Size: "9999", Manufacturer: "x"})
	require.True(t, ok)
	assert.Same(t, &b.Groups[0].Models, m)

	// Empty bundle resolves nothing.
	empty := &Bundle{}
	_, ok = empty.Resolve(domain.GroupKey{})
	assert.False(t, ok)
}
