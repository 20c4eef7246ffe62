// Package features turns normalized daily records into the training frame: the
// derived temporal features, the 30-day-ahead labels, and the ordered feature
// column list that the bundle carries verbatim. This package is the sole
// authority over column naming and ordering; downstream code consumes the
// column list but never invents columns.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/partpilot/forecast/internal/domain"
)

// LabelHorizon is the number of future records summed into the demand label.
// The trailing LabelHorizon rows of every part are dropped from training since
// their label cannot be computed.
const LabelHorizon = 30

// ErrInsufficientHistory signals that no part had enough rows to compute even
// one label.
var ErrInsufficientHistory = errors.New("features: no part has enough history for a label")

// baseColumns is the fixed numeric feature order, before one-hot expansion.
var baseColumns = []string{
	"opening_stock",
	"closing_stock",
	"planned_usage",
	"used_actual",
	"pending_inbound_before_order",
	"lead_time_days",
	"unit_price",
	"monthly_discount",
	"shipping_fee",
	"region_fee",
	"dow",
	"month",
	"used_roll7",
	"used_roll30",
	"used_lag1",
	"used_lag7",
	"used_lag30",
	"used_std7",
	"used_std30",
}

// Frame is the fully derived training dataset. Rows align 1:1 across all
// slices, and X rows align 1:1 with Columns.
type Frame struct {
	Columns []string
	X       [][]float64

	// Labels.
	Future30   []float64
	DaysToZero []float64
	Risk6m     []bool
	Risk12m    []bool

	// Row metadata for partitioning and evaluation.
	Keys    []domain.GroupKey
	Records []domain.PartDailyRecord

	PartCount int
}

// Build derives the feature frame from normalized records. Records are sorted
// by (part_id, date) first; rolling and lag computations never cross part
// boundaries.
func Build(records []domain.PartDailyRecord) (*Frame, error) {
	if len(records) == 0 {
		return nil, ErrInsufficientHistory
	}

	sorted := make([]domain.PartDailyRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PartID != sorted[j].PartID {
			return sorted[i].PartID < sorted[j].PartID
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	oneHot := collectOneHot(sorted)
	columns := append(append([]string{}, baseColumns...), oneHot...)

	f := &Frame{Columns: columns}

	// Walk per-part runs.
	start := 0
	parts := 0
	for start < len(sorted) {
		end := start
		for end < len(sorted) && sorted[end].PartID == sorted[start].PartID {
			end++
		}
		parts++
		f.appendPart(sorted[start:end])
		start = end
	}
	f.PartCount = parts

	if len(f.X) == 0 {
		return nil, ErrInsufficientHistory
	}
	return f, nil
}

// appendPart derives features for one part's chronological run and appends the
// labelable prefix (all but the trailing LabelHorizon rows) to the frame.
func (f *Frame) appendPart(run []domain.PartDailyRecord) {
	n := len(run)
	if n <= LabelHorizon {
		return
	}

	used := make([]float64, n)
	for i, r := range run {
		used[i] = r.UsedActual
	}

	for i := 0; i < n-LabelHorizon; i++ {
		r := run[i]

		roll7 := rollingMean(used, i, 7)
		roll30 := rollingMean(used, i, 30)
		std7 := rollingStd(used, i, 7)
		std30 := rollingStd(used, i, 30)
		daysToZero := r.ClosingStock / (roll7 + 1e-5)

		future := 0.0
		for j := i + 1; j <= i+LabelHorizon; j++ {
			future += used[j]
		}

		row := make([]float64, len(f.Columns))
		base := []float64{
			r.OpeningStock,
			r.ClosingStock,
			r.PlannedUsage,
			r.UsedActual,
			r.PendingInbound,
			float64(r.LeadTimeDays),
			r.UnitPrice,
			r.MonthlyDiscount,
			r.ShippingFee,
			r.RegionFee,
			float64(r.Date.Weekday()),
			float64(r.Date.Month()),
			roll7,
			roll30,
			lag(used, i, 1),
			lag(used, i, 7),
			lag(used, i, 30),
			std7,
			std30,
		}
		copy(row, base)
		key := domain.GroupKey{Category: r.Category, Size: r.Size, Manufacturer: r.Manufacturer}
		for j := len(base); j < len(f.Columns); j++ {
			if oneHotMatches(f.Columns[j], key) {
				row[j] = 1
			}
		}

		f.X = append(f.X, row)
		f.Future30 = append(f.Future30, future)
		f.DaysToZero = append(f.DaysToZero, daysToZero)
		f.Risk6m = append(f.Risk6m, daysToZero <= 183)
		f.Risk12m = append(f.Risk12m, daysToZero <= 365)
		f.Keys = append(f.Keys, key)
		f.Records = append(f.Records, r)
	}
}

// rollingMean averages the trailing window ending at i inclusive, min-periods 1.
func rollingMean(v []float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	return stat.Mean(v[lo:i+1], nil)
}

// rollingStd is the sample standard deviation of the trailing window; windows
// of a single observation yield 0.
func rollingStd(v []float64, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	if i+1-lo < 2 {
		return 0
	}
	sd := stat.StdDev(v[lo:i+1], nil)
	if math.IsNaN(sd) {
		return 0
	}
	return sd
}

// lag returns the value offset rows earlier in the part's series, 0 before the
// series starts.
func lag(v []float64, i, offset int) float64 {
	if i-offset < 0 {
		return 0
	}
	return v[i-offset]
}

func collectOneHot(records []domain.PartDailyRecord) []string {
	cats := map[string]struct{}{}
	sizes := map[string]struct{}{}
	manus := map[string]struct{}{}
	for _, r := range records {
		cats[r.Category] = struct{}{}
		sizes[r.Size] = struct{}{}
		manus[r.Manufacturer] = struct{}{}
	}

	cols := make([]string, 0, len(cats)+len(sizes)+len(manus))
	cols = append(cols, prefixedSorted("category_", cats)...)
	cols = append(cols, prefixedSorted("size_", sizes)...)
	cols = append(cols, prefixedSorted("manufacturer_", manus)...)
	return cols
}

func prefixedSorted(prefix string, values map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for v := range values {
		out = append(out, prefix+v)
	}
	sort.Strings(out)
	return out
}

func oneHotMatches(column string, key domain.GroupKey) bool {
	return column == "category_"+key.Category ||
		column == "size_"+key.Size ||
		column == "manufacturer_"+key.Manufacturer
}

// Vector assembles an inference row in the given column order from a sparse
// value map. Columns absent from the map are 0; map entries that match no
// column are ignored, which makes predictions invariant to extra or permuted
// request columns.
func Vector(columns []string, values map[string]float64) []float64 {
	x := make([]float64, len(columns))
	for i, c := range columns {
		x[i] = values[c]
	}
	return x
}

// InputValues flattens a normalized request row into the sparse column-value
// map consumed by Vector. dow and month come from the caller's "today".
func InputValues(r domain.PartInputRow, dow, month int) map[string]float64 {
	v := map[string]float64{
		"opening_stock":                math.Max(0, r.OpeningStock),
		"closing_stock":                r.ClosingStock,
		"planned_usage":                r.PlannedUsage,
		"used_actual":                  r.TodayUsage,
		"pending_inbound_before_order": r.PendingInbound,
		"lead_time_days":               float64(r.LeadTimeDays),
		"unit_price":                   r.UnitPrice,
		"monthly_discount":             r.MonthlyDiscount,
		"shipping_fee":                 r.ShippingFee,
		"region_fee":                   r.RegionFee,
		"dow":                          float64(dow),
		"month":                        float64(month),
		"used_roll7":                   r.RollingMean7,
		"used_roll30":                  r.RollingMean30,
		"used_lag1":                    r.Lag1,
		"used_lag7":                    r.Lag7,
		"used_lag30":                   r.Lag30,
		"used_std7":                    r.RollingStd7,
		"used_std30":                   r.RollingStd30,
	}
	v[fmt.Sprintf("category_%s", r.Category)] = 1
	v[fmt.Sprintf("size_%s", r.Size)] = 1
	v[fmt.Sprintf("manufacturer_%s", r.Manufacturer)] = 1
	return v
}
