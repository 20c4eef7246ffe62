package predict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/ml"
)

// constantForest trains a forest whose every prediction is the given constant,
// which makes downstream assertions exact.
func constantForest(t *testing.T, value float64) *ml.Forest {
	t.Helper()
	x := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = []float64{float64(i), float64(i % 5)}
		y[i] = value
	}
	f, err := ml.TrainRegressor(x, y, ml.Config{NumTrees: 3, Seed: 1})
	require.NoError(t, err)
	return f
}

func testBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	group := func(cat, size, manu string, usage30, days float64) bundle.GroupEntry {
		f := constantForest(t, usage30)
		d := constantForest(t, days)
		c := constantForest(t, 0)
		return bundle.GroupEntry{
			Key:    domain.GroupKey{Category: cat, Size: size, Manufacturer: manu},
			Models: bundle.GroupModels{RegUsage: f, RegDays: d, Cls6m: c, Cls12m: c},
		}
	}
	return &bundle.Bundle{
		FeatureColumns: []string{"opening_stock", "used_actual", "category_Capacitor", "size_0402", "manufacturer_murata"},
		// Resistor first so the last-resort fallback (first entry) is
		// distinguishable from the (category, size) family fallback in tests.
		Groups: []bundle.GroupEntry{
			group("Resistor", "0603", "yageo", 30, 60),
			group("Capacitor", "0402", "murata", 360, 20),
			group("Capacitor", "0402", "tdk", 90, 5),
		},
		Meta: domain.BundleMeta{CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := bundle.NewStore(t.TempDir())
	require.NoError(t, store.Save(testBundle(t), bundle.SaveOptions{}))
	return NewService(store, WithClock(func() time.Time {
		return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	}))
}

func murataRow(partID int64) domain.PartInputRow {
	return domain.PartInputRow{
		PartID:       partID,
		Category:     "Capacitor",
		Size:         "0402",
		Manufacturer: "murata",
		OpeningStock: 0,
		LeadTimeDays: 0,
		UnitPrice:    10,
		TodayUsage:   12,
	}
}

func TestPredictBundleUnavailable(t *testing.T) {
	s := NewService(bundle.NewStore(t.TempDir()))

	_, err := s.Predict(context.Background(), domain.PredictRequest{Parts: []domain.PartInputRow{murataRow(1)}})
	assert.ErrorIs(t, err, bundle.ErrBundleUnavailable)

	meta, err := s.Meta(context.Background())
	require.NoError(t, err)
	assert.False(t, meta.Available)
	assert.Nil(t, meta.Meta)
}

func TestMetaAvailable(t *testing.T) {
	s := newTestService(t)
	meta, err := s.Meta(context.Background())
	require.NoError(t, err)
	assert.True(t, meta.Available)
	require.NotNil(t, meta.Meta)
	assert.NotEmpty(t, meta.UpdatedAt)
}

func TestPredictEmptyInput(t *testing.T) {
	s := newTestService(t)
	resp, err := s.Predict(context.Background(), domain.PredictRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.GeneratedAt)
	assert.Equal(t, 0, resp.NParts)
	assert.Empty(t, resp.Items)
}

func TestPredictBasicItem(t *testing.T) {
	s := newTestService(t)
	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{murataRow(1)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Equal(t, int64(1), item.PartID)
	assert.Equal(t, 12.0, item.TodayUsage)
	// The murata group predicts usage30=360 and 20 days to depletion.
	assert.Equal(t, 20.0, item.PredictedDaysToDepletion)
	assert.False(t, item.Warning)

	// Flat demand 12/day, service 14d, pack 100: 168 rounds to 200.
	require.NotEmpty(t, item.RecommendationsTop3)
	assert.Equal(t, 200.0, item.RecommendationsTop3[0].Quantity)
	assert.Equal(t, item.RecommendationsTop3[0].Quantity, item.PredictedOrderQty)

	// Recommendations are sorted and capped at three.
	assert.LessOrEqual(t, len(item.RecommendationsTop3), 3)
	for i := 1; i < len(item.RecommendationsTop3); i++ {
		assert.LessOrEqual(t,
			item.RecommendationsTop3[i-1].ExpectedTotalCost,
			item.RecommendationsTop3[i].ExpectedTotalCost)
	}

	require.Len(t, item.BestDayTop3, 1)
	assert.Equal(t, item.RecommendationsTop3[0].DayOffset, item.BestDayTop3[0].DayOffset)
	assert.GreaterOrEqual(t, item.BestDayTop3[0].Prob, 0.5)
	assert.LessOrEqual(t, item.BestDayTop3[0].Prob, 0.95)
}

func TestPredictWarningThreshold(t *testing.T) {
	s := newTestService(t)
	row := murataRow(1)
	row.Manufacturer = "tdk" // tdk group predicts 5 days to depletion
	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{row},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5.0, resp.Items[0].PredictedDaysToDepletion)
	assert.True(t, resp.Items[0].Warning)
}

func TestPredictEmptyHorizon(t *testing.T) {
	s := newTestService(t)
	horizon := 0
	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Horizon: &horizon,
		Parts:   []domain.PartInputRow{murataRow(1)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Empty(t, item.RecommendationsTop3)
	assert.Equal(t, 0.0, item.PredictedOrderQty)
	assert.Empty(t, item.BestDayTop3)
	// Depletion estimate and warning still computed.
	assert.Equal(t, 20.0, item.PredictedDaysToDepletion)
	assert.False(t, item.Warning)
}

func TestPredictGroupFallback(t *testing.T) {
	s := newTestService(t)

	// Unseen manufacturer with a known (category, size) family must route to
	// that family, not the global first-entry fallback. The family model
	// predicts 360/30d vs the Resistor group's 30/30d, which shows up in the
	// order quantity.
	row := murataRow(1)
	row.Manufacturer = "samsung"
	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{row},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.NotEmpty(t, resp.Items[0].RecommendationsTop3)
	assert.Equal(t, 200.0, resp.Items[0].RecommendationsTop3[0].Quantity)
}

func TestPredictSizeNormalizationRouting(t *testing.T) {
	s := newTestService(t)

	a := murataRow(1)
	a.Size = "0402"
	b := murataRow(2)
	b.Size = "402/large"

	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{a, b},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	// Both rows normalize to size 0402 and hit the same group model.
	assert.Equal(t, "0402", resp.Items[1].Size)
	assert.Equal(t, resp.Items[0].PredictedOrderQty, resp.Items[1].PredictedOrderQty)
	assert.Equal(t, resp.Items[0].PredictedDaysToDepletion, resp.Items[1].PredictedDaysToDepletion)
}

func TestPredictPreservesInputOrderAndLimit(t *testing.T) {
	s := newTestService(t)

	rows := []domain.PartInputRow{murataRow(3), murataRow(1), murataRow(2)}
	resp, err := s.Predict(context.Background(), domain.PredictRequest{Parts: rows, Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(3), resp.Items[0].PartID)
	assert.Equal(t, int64(1), resp.Items[1].PartID)
	assert.Equal(t, 2, resp.NParts)
}

func TestPredictSummaryCategories(t *testing.T) {
	s := newTestService(t)

	resistor := domain.PartInputRow{
		PartID: 5, Category: "Resistor", Size: "0603", Manufacturer: "yageo",
		OpeningStock: 100, UnitPrice: 1,
	}
	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{murataRow(1), resistor},
	})
	require.NoError(t, err)

	require.Len(t, resp.Summary.Categories, 2)
	assert.Equal(t, "Capacitor", resp.Summary.Categories[0].Category)
	assert.Equal(t, 20.0, resp.Summary.Categories[0].DaysPossible)
	assert.Equal(t, "Resistor", resp.Summary.Categories[1].Category)
	assert.Equal(t, 60.0, resp.Summary.Categories[1].DaysPossible)
}

func TestPredictDeterministicAcrossReload(t *testing.T) {
	// Saving and loading the bundle must not change predictions for a fixed
	// input row.
	dir := t.TempDir()
	store := bundle.NewStore(dir)
	require.NoError(t, store.Save(testBundle(t), bundle.SaveOptions{Compress: true}))

	clock := func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	s1 := NewService(bundle.NewStore(dir), WithClock(clock))
	s2 := NewService(bundle.NewStore(dir), WithClock(clock))

	req := domain.PredictRequest{Parts: []domain.PartInputRow{murataRow(1)}}
	r1, err := s1.Predict(context.Background(), req)
	require.NoError(t, err)
	r2, err := s2.Predict(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestPredictNegativeLeadTimeRow(t *testing.T) {
	s := newTestService(t)

	bad := murataRow(1)
	bad.LeadTimeDays = -3

	resp, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{bad, murataRow(2)},
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	// The malformed lead time plans as if the order arrived immediately.
	good, err := s.Predict(context.Background(), domain.PredictRequest{
		Parts: []domain.PartInputRow{murataRow(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, good.Items[0].RecommendationsTop3, resp.Items[0].RecommendationsTop3)
}
