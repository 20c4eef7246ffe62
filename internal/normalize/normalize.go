// Package normalize enforces canonical taxonomy values on records and request
// rows. It never fails; anomalies are coerced to sentinel values so that
// downstream grouping always has a usable key.
package normalize

import (
	"strings"

	"github.com/partpilot/forecast/internal/domain"
)

const (
	// UnknownCategory and UnknownSize are the sentinels for missing taxonomy.
	UnknownCategory = "Unknown"
	UnknownSize     = "Unknown"
	// UnknownManufacturer is intentionally lower case to match the historical
	// data feed.
	UnknownManufacturer = "unknown"
)

// Category passes known values through and maps blanks to the sentinel.
func Category(s string) string {
	s = strings.TrimSpace(s)
	if isUnknown(s) {
		return UnknownCategory
	}
	return s
}

// Size canonicalizes package sizes. Any "/..." suffix is stripped first, then
// the digits are extracted: exactly 3 digits are left-padded to 4 ("402" ->
// "0402"), 4 or more digits are kept as-is, anything else keeps the trimmed
// original string.
func Size(s string) string {
	s = strings.TrimSpace(s)
	if isUnknown(s) {
		return UnknownSize
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	digits := extractDigits(s)
	switch {
	case len(digits) == 3:
		return "0" + digits
	case len(digits) >= 4:
		return digits
	case s == "":
		return UnknownSize
	default:
		return s
	}
}

// Manufacturer trims and maps blanks to the sentinel.
func Manufacturer(s string) string {
	s = strings.TrimSpace(s)
	if isUnknown(s) {
		return UnknownManufacturer
	}
	return s
}

// Record canonicalizes a historical record's taxonomy fields in place.
func Record(r *domain.PartDailyRecord) {
	r.Category = Category(r.Category)
	r.Size = Size(r.Size)
	r.Manufacturer = Manufacturer(r.Manufacturer)
}

// InputRow canonicalizes a prediction request row's taxonomy fields in place.
func InputRow(r *domain.PartInputRow) {
	r.Category = Category(r.Category)
	r.Size = Size(r.Size)
	r.Manufacturer = Manufacturer(r.Manufacturer)
}

// Key builds the canonical group key for a taxonomy triple.
func Key(category, size, manufacturer string) domain.GroupKey {
	return domain.GroupKey{
		Category:     Category(category),
		Size:         Size(size),
		Manufacturer: Manufacturer(manufacturer),
	}
}

func isUnknown(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToLower(s) {
	case "unknown", "nan", "none", "null", "-":
		return true
	}
	return false
}

func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
