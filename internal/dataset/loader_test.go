package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const sampleCSV = `part_id,date,category,size,manufacturer,opening_stock,closing_stock,planned_usage,used_actual,pending_inbound_before_order,lead_time_days,unit_price,monthly_discount,shipping_fee,region_fee
1,2024-01-01,Capacitor,402/bulk,murata,100,95,4,5,0,3,2.5,0,1,0
1,2024-01-02,Capacitor,402/bulk,murata,95,90,4,5,0,3,2.5,0,1,0
2,2024-01-01,Resistor,0603,,50,"1,048",2,2,0,5,0.5,0,0,0
bad_id,2024-01-01,Resistor,0603,yageo,50,48,2,2,0,5,0.5,0,0,0
3,not-a-date,Resistor,0603,yageo,50,48,2,2,0,5,0.5,0,0,0
`

func TestLoadYears(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024", "Part_A.csv"), sampleCSV)

	records, err := LoadYears(root, []int{2024}, Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Taxonomy is normalized at load time.
	assert.Equal(t, "0402", records[0].Size)
	assert.Equal(t, "unknown", records[2].Manufacturer)
	// Quoted thousands separators parse.
	assert.Equal(t, 1048.0, records[2].ClosingStock)
	// Year derives from the date when absent.
	assert.Equal(t, 2024, records[0].Year)
	assert.Equal(t, int64(1), records[0].PartID)
}

func TestLoadYearsMissing(t *testing.T) {
	root := t.TempDir()
	_, err := LoadYears(root, []int{2023, 2024}, Options{})
	assert.ErrorIs(t, err, ErrDataMissing)
}

func TestLoadYearsHeaderVariants(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024", "Part_B.csv"),
		"Part ID,Date,Category,Size,Maker,Opening Stock,Used Actual,Lead Time Days\n"+
			"7,2024-02-01,Inductor,0805,tdk,10,1,2\n")

	records, err := LoadYears(root, []int{2024}, Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].PartID)
	assert.Equal(t, "tdk", records[0].Manufacturer)
	assert.Equal(t, 10.0, records[0].OpeningStock)
	assert.Equal(t, 2, records[0].LeadTimeDays)
}

func TestLoadYearsEffectiveOrderQty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "2024", "Part_C.csv"),
		"part_id,date,category,size,manufacturer,order_qty_effective\n"+
			"1,2024-01-01,Capacitor,0402,murata,200\n"+
			"1,2024-01-02,Capacitor,0402,murata,\n")

	records, err := LoadYears(root, []int{2024}, Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, records[0].OrderQtyEffective)
	assert.Equal(t, 200.0, *records[0].OrderQtyEffective)
	assert.Nil(t, records[1].OrderQtyEffective)
}

func TestSamplePerPartIsStable(t *testing.T) {
	root := t.TempDir()

	var sb strings.Builder
	sb.WriteString("part_id,date,category,size,manufacturer\n")
	for part := 1; part <= 40; part++ {
		for day := 1; day <= 2; day++ {
			fmt.Fprintf(&sb, "%d,2024-01-0%d,C,0402,m\n", part, day)
		}
	}
	writeFile(t, filepath.Join(root, "2024", "Part_D.csv"), sb.String())

	a1, err := LoadYears(root, []int{2024}, Options{SampleRate: 0.5, Seed: 3})
	require.NoError(t, err)
	a2, err := LoadYears(root, []int{2024}, Options{SampleRate: 0.5, Seed: 3})
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEmpty(t, a1)
	assert.Less(t, len(a1), 80)

	// Whole part series are kept or dropped together.
	counts := map[int64]int{}
	for _, r := range a1 {
		counts[r.PartID]++
	}
	for _, c := range counts {
		assert.Equal(t, 2, c)
	}
}
