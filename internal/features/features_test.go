package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partpilot/forecast/internal/domain"
)

func seriesRecords(partID int64, days int, usage func(i int) float64) []domain.PartDailyRecord {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PartDailyRecord, days)
	for i := 0; i < days; i++ {
		out[i] = domain.PartDailyRecord{
			PartID:       partID,
			Date:         start.AddDate(0, 0, i),
			Year:         2024,
			Category:     "Capacitor",
			Size:         "0402",
			Manufacturer: "murata",
			OpeningStock: 1000,
			ClosingStock: 1000 - float64(i),
			UsedActual:   usage(i),
			UnitPrice:    2.5,
		}
	}
	return out
}

func TestBuildDropsUnlabelableTail(t *testing.T) {
	recs := seriesRecords(1, 45, func(i int) float64 { return float64(i % 5) })

	f, err := Build(recs)
	require.NoError(t, err)

	// 45 rows minus the trailing 30 with no computable label.
	assert.Len(t, f.X, 15)
	assert.Len(t, f.Future30, 15)
	assert.Equal(t, 1, f.PartCount)
}

func TestBuildInsufficientHistory(t *testing.T) {
	recs := seriesRecords(1, 30, func(i int) float64 { return 1 })

	_, err := Build(recs)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestFuture30Label(t *testing.T) {
	recs := seriesRecords(1, 40, func(i int) float64 { return 2 })

	f, err := Build(recs)
	require.NoError(t, err)

	// Flat usage of 2/day sums to 60 over the next 30 records.
	for _, v := range f.Future30 {
		assert.InDelta(t, 60.0, v, 1e-9)
	}
}

func TestRollingAndLagFeatures(t *testing.T) {
	recs := seriesRecords(1, 40, func(i int) float64 { return float64(i) })

	f, err := Build(recs)
	require.NoError(t, err)

	col := map[string]int{}
	for i, c := range f.Columns {
		col[c] = i
	}

	// Row 0: single-observation windows.
	assert.InDelta(t, 0.0, f.X[0][col["used_roll7"]], 1e-9)
	assert.InDelta(t, 0.0, f.X[0][col["used_lag1"]], 1e-9)
	assert.InDelta(t, 0.0, f.X[0][col["used_std7"]], 1e-9)

	// Row 9: trailing-7 window covers usage 3..9, mean 6; lag1 is 8.
	assert.InDelta(t, 6.0, f.X[9][col["used_roll7"]], 1e-9)
	assert.InDelta(t, 8.0, f.X[9][col["used_lag1"]], 1e-9)
	assert.InDelta(t, 2.0, f.X[9][col["used_lag7"]], 1e-9)
}

func TestRollingIsIntraPart(t *testing.T) {
	a := seriesRecords(1, 40, func(i int) float64 { return 100 })
	b := seriesRecords(2, 40, func(i int) float64 { return 0 })

	f, err := Build(append(a, b...))
	require.NoError(t, err)

	col := map[string]int{}
	for i, c := range f.Columns {
		col[c] = i
	}

	// Part 2's first labelable row must not see part 1's usage.
	firstOfPart2 := 10
	assert.Equal(t, int64(2), f.Records[firstOfPart2].PartID)
	assert.InDelta(t, 0.0, f.X[firstOfPart2][col["used_roll7"]], 1e-9)
	assert.InDelta(t, 0.0, f.X[firstOfPart2][col["used_lag1"]], 1e-9)
}

func TestOneHotColumns(t *testing.T) {
	a := seriesRecords(1, 40, func(i int) float64 { return 1 })
	b := seriesRecords(2, 40, func(i int) float64 { return 1 })
	for i := range b {
		b[i].Category = "Resistor"
		b[i].Manufacturer = "yageo"
	}

	f, err := Build(append(a, b...))
	require.NoError(t, err)

	assert.Contains(t, f.Columns, "category_Capacitor")
	assert.Contains(t, f.Columns, "category_Resistor")
	assert.Contains(t, f.Columns, "manufacturer_murata")
	assert.Contains(t, f.Columns, "manufacturer_yageo")

	col := map[string]int{}
	for i, c := range f.Columns {
		col[c] = i
	}
	assert.Equal(t, 1.0, f.X[0][col["category_Capacitor"]])
	assert.Equal(t, 0.0, f.X[0][col["category_Resistor"]])
}

func TestVectorAlignment(t *testing.T) {
	columns := []string{"a", "b", "c"}
	x := Vector(columns, map[string]float64{"c": 3, "a": 1, "extra": 99})

	assert.Equal(t, []float64{1, 0, 3}, x)
}

func TestInputValuesOneHot(t *testing.T) {
	row := domain.PartInputRow{Category: "Capacitor", Size: "0402", Manufacturer: "murata", OpeningStock: -5}
	v := InputValues(row, 2, 6)

	assert.Equal(t, 1.0, v["category_Capacitor"])
	assert.Equal(t, 1.0, v["size_0402"])
	assert.Equal(t, 2.0, v["dow"])
	assert.Equal(t, 6.0, v["month"])
	// Opening stock is clipped at 0.
	assert.Equal(t, 0.0, v["opening_stock"])
}
