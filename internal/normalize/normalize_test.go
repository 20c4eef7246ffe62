package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/partpilot/forecast/internal/domain"
)

func TestSize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"three digits padded", "402", "0402"},
		{"four digits kept", "0402", "0402"},
		{"five digits kept", "12345", "12345"},
		{"suffix stripped", "402/large", "0402"},
		{"suffix stripped four digits", "0603/reel", "0603"},
		{"mixed keeps original", "A2", "A2"},
		{"whitespace trimmed", "  0805  ", "0805"},
		{"empty is unknown", "", UnknownSize},
		{"nan is unknown", "NaN", UnknownSize},
		{"slash only is unknown", "/bulk", UnknownSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Size(tt.in))
		})
	}
}

func TestSizeEquivalence(t *testing.T) {
	// "0402" and "402" must map to the same canonical value so both route to
	// the same group model.
	assert.Equal(t, Size("0402"), Size("402"))
	assert.Equal(t, Key("R", "0402", "m"), Key("R", "402", "m"))
}

func TestCategoryAndManufacturer(t *testing.T) {
	assert.Equal(t, "Resistor", Category(" Resistor "))
	assert.Equal(t, UnknownCategory, Category(""))
	assert.Equal(t, UnknownCategory, Category("null"))

	assert.Equal(t, "Yageo", Manufacturer("Yageo "))
	assert.Equal(t, UnknownManufacturer, Manufacturer(""))
	assert.Equal(t, UnknownManufacturer, Manufacturer("-"))
}

func TestRecord(t *testing.T) {
	r := domain.PartDailyRecord{Category: "", Size: "402/bulk", Manufacturer: "  "}
	Record(&r)

	assert.Equal(t, UnknownCategory, r.Category)
	assert.Equal(t, "0402", r.Size)
	assert.Equal(t, UnknownManufacturer, r.Manufacturer)
}
