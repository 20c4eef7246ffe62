// Package dataset ingests the historical usage logs from the canonical layout
// <data-root>/<year>/Part_*.csv. Header matching is tolerant of spacing and
// casing variants; malformed rows are logged and dropped rather than aborting
// the load.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/normalize"
)

// ErrDataMissing signals that no input file exists for any requested year.
var ErrDataMissing = errors.New("dataset: no input files found for requested years")

// Options tune the load.
type Options struct {
	// SampleRate in (0, 1) keeps that fraction of parts; 0 or >= 1 keeps all.
	// Sampling is per part so a kept part retains its full daily series.
	SampleRate float64
	Seed       int64
}

// LoadYears reads and normalizes every Part_*.csv under the year directories.
func LoadYears(dataRoot string, years []int, opts Options) ([]domain.PartDailyRecord, error) {
	var files []string
	for _, year := range years {
		pattern := filepath.Join(dataRoot, strconv.Itoa(year), "Part_*.csv")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			log.Warn().Int("year", year).Str("pattern", pattern).Msg("dataset: no files for year")
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, ErrDataMissing
	}

	var records []domain.PartDailyRecord
	for _, path := range files {
		rows, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		records = append(records, rows...)
	}

	if opts.SampleRate > 0 && opts.SampleRate < 1 {
		records = samplePerPart(records, opts.SampleRate, opts.Seed)
	}

	log.Info().
		Int("files", len(files)).
		Int("rows", len(records)).
		Msg("dataset: loaded historical records")
	return records, nil
}

func loadFile(path string) ([]domain.PartDailyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
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
	idxDate := colIndex("date")
	if idxPartID < 0 || idxDate < 0 {
		log.Warn().Str("file", path).Msg("dataset: missing part_id/date columns, skipping file")
		return nil, nil
	}

	idxYear := colIndex("year")
	idxCategory := colIndex("category")
	idxSize := colIndex("size")
	idxManufacturer := colIndex("manufacturer", "maker")
	idxOpening := colIndex("opening_stock", "opening stock")
	idxClosing := colIndex("closing_stock", "closing stock")
	idxPlanned := colIndex("planned_usage", "planned usage")
	idxUsed := colIndex("used_actual", "used actual")
	idxPending := colIndex("pending_inbound_before_order", "pending inbound")
	idxLeadTime := colIndex("lead_time_days", "lead time days", "lead_time")
	idxOrderQty := colIndex("order_qty_effective", "order qty effective")
	idxUnitPrice := colIndex("unit_price", "unit price")
	idxDiscount := colIndex("monthly_discount", "monthly discount")
	idxShipping := colIndex("shipping_fee", "shipping fee")
	idxRegion := colIndex("region_fee", "region fee")

	var (
		rows    []domain.PartDailyRecord
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
		date, err := parseDate(get(idxDate))
		if err != nil {
			dropped++
			continue
		}

		year := 0
		if v := get(idxYear); v != "" {
			year, _ = strconv.Atoi(v)
		}
		if year == 0 {
			year = date.Year()
		}

		row := domain.PartDailyRecord{
			PartID:          partID,
			Date:            date,
			Year:            year,
			Category:        get(idxCategory),
			Size:            get(idxSize),
			Manufacturer:    get(idxManufacturer),
			OpeningStock:    parseFloat(idxOpening),
			ClosingStock:    parseFloat(idxClosing),
			PlannedUsage:    parseFloat(idxPlanned),
			UsedActual:      parseFloat(idxUsed),
			PendingInbound:  parseFloat(idxPending),
			LeadTimeDays:    int(parseFloat(idxLeadTime)),
			UnitPrice:       parseFloat(idxUnitPrice),
			MonthlyDiscount: parseFloat(idxDiscount),
			ShippingFee:     parseFloat(idxShipping),
			RegionFee:       parseFloat(idxRegion),
		}
		if v := get(idxOrderQty); v != "" {
			q, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
			if err == nil {
				row.OrderQtyEffective = &q
			}
		}
		normalize.Record(&row)
		rows = append(rows, row)
	}

	if dropped > 0 {
		log.Warn().Str("file", path).Int("dropped", dropped).Msg("dataset: dropped malformed rows")
	}
	return rows, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006/01/02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// samplePerPart keeps whole part series with probability rate. Each part's
// keep decision is drawn from an RNG derived from the seed and the part id, so
// sampling is stable across runs and file orderings.
func samplePerPart(records []domain.PartDailyRecord, rate float64, seed int64) []domain.PartDailyRecord {
	keep := map[int64]bool{}
	out := records[:0]
	for _, r := range records {
		decided, ok := keep[r.PartID]
		if !ok {
			rng := rand.New(rand.NewSource(seed ^ r.PartID))
			decided = rng.Float64() < rate
			keep[r.PartID] = decided
		}
		if decided {
			out = append(out, r)
		}
	}
	return out
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}
