package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/normalize"
)

// LoadSnapshot reads a current-state CSV into prediction input rows. It is the
// serving-side counterpart of LoadYears: same tolerant header matching, rows
// without a parseable part_id are logged and dropped.
func LoadSnapshot(path string) ([]domain.PartInputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}

	colIndex := func(names ...string) int {
		targets := make(map[string]struct{}, len(names))
		for _, name := range names {
			targets[normalizeColumnName(name)] = struct{}{}
		}
		for i, h := range header {
			if _, ok := targets[normalizeColumnName(h)]; ok {
				return i
			}
		}
		return -1
	}

	idxPartID := colIndex("part_id", "part id")
	if idxPartID < 0 {
		return nil, fmt.Errorf("snapshot %s: missing part_id column", path)
	}

	idxCategory := colIndex("category")
	idxSize := colIndex("size")
	idxManufacturer := colIndex("manufacturer", "maker")
	idxOpening := colIndex("opening_stock", "opening stock")
	idxClosing := colIndex("closing_stock", "closing stock")
	idxPlanned := colIndex("planned_usage", "planned usage")
	idxToday := colIndex("today_usage", "used_actual", "used actual")
	idxPending := colIndex("pending_inbound_before_order", "pending inbound")
	idxLeadTime := colIndex("lead_time_days", "lead time days", "lead_time")
	idxUnitPrice := colIndex("unit_price", "unit price")
	idxDiscount := colIndex("monthly_discount", "monthly discount")
	idxShipping := colIndex("shipping_fee", "shipping fee")
	idxRegion := colIndex("region_fee", "region fee")
	idxRoll7 := colIndex("used_roll7")
	idxRoll30 := colIndex("used_roll30")
	idxLag1 := colIndex("used_lag1")
	idxLag7 := colIndex("used_lag7")
	idxLag30 := colIndex("used_lag30")
	idxStd7 := colIndex("used_std7")
	idxStd30 := colIndex("used_std30")
	idxPack := colIndex("pack_size", "pack size")
	idxMOQ := colIndex("moq")

	var (
		rows    []domain.PartInputRow
		dropped int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		parseFloat := func(idx int) float64 {
			v := get(idx)
			if v == "" {
				return 0
			}
			v = strings.ReplaceAll(v, ",", "")
			f, _ := strconv.ParseFloat(v, 64)
			return f
		}

		partID, err := strconv.ParseInt(get(idxPartID), 10, 64)
		if err != nil {
			dropped++
			continue
		}

		row := domain.PartInputRow{
			PartID:          partID,
			Category:        get(idxCategory),
			Size:            get(idxSize),
			Manufacturer:    get(idxManufacturer),
			OpeningStock:    parseFloat(idxOpening),
			ClosingStock:    parseFloat(idxClosing),
			PlannedUsage:    parseFloat(idxPlanned),
			TodayUsage:      parseFloat(idxToday),
			PendingInbound:  parseFloat(idxPending),
			LeadTimeDays:    int(parseFloat(idxLeadTime)),
			UnitPrice:       parseFloat(idxUnitPrice),
			MonthlyDiscount: parseFloat(idxDiscount),
			ShippingFee:     parseFloat(idxShipping),
			RegionFee:       parseFloat(idxRegion),
			RollingMean7:    parseFloat(idxRoll7),
			RollingMean30:   parseFloat(idxRoll30),
			Lag1:            parseFloat(idxLag1),
			Lag7:            parseFloat(idxLag7),
			Lag30:           parseFloat(idxLag30),
			RollingStd7:     parseFloat(idxStd7),
			RollingStd30:    parseFloat(idxStd30),
		}
		if v := get(idxPack); v != "" {
			if p, err := strconv.Atoi(v); err == nil && p > 0 {
				row.PackSize = &p
			}
		}
		if v := get(idxMOQ); v != "" {
			if m, err := strconv.Atoi(v); err == nil && m > 0 {
				row.MOQ = &m
			}
		}
		normalize.InputRow(&row)
		rows = append(rows, row)
	}

	if dropped > 0 {
		log.Warn().Str("file", path).Int("dropped", dropped).Msg("dataset: dropped malformed snapshot rows")
	}
	return rows, nil
}
