package domain

import "time"

// PartDailyRecord is one row of the historical usage log, one per (part, day).
type PartDailyRecord struct {
	PartID       int64     `json:"part_id"`
	Date         time.Time `json:"date"`
	Year         int       `json:"year"`
	Category     string    `json:"category"`
	Size         string    `json:"size"`
	Manufacturer string    `json:"manufacturer"`

	OpeningStock   float64 `json:"opening_stock"`
	ClosingStock   float64 `json:"closing_stock"`
	PlannedUsage   float64 `json:"planned_usage"`
	UsedActual     float64 `json:"used_actual"`
	PendingInbound float64 `json:"pending_inbound_before_order"`

	LeadTimeDays      int      `json:"lead_time_days"`
	OrderQtyEffective *float64 `json:"order_qty_effective,omitempty"`

	UnitPrice       float64 `json:"unit_price"`
	MonthlyDiscount float64 `json:"monthly_discount"`
	ShippingFee     float64 `json:"shipping_fee"`
	RegionFee       float64 `json:"region_fee"`
}

// GroupKey partitions parts by normalized taxonomy. Key equality is value equality.
type GroupKey struct {
	Category     string `json:"category"`
	Size         string `json:"size"`
	Manufacturer string `json:"manufacturer"`
}

func (k GroupKey) String() string {
	return k.Category + "|" + k.Size + "|" + k.Manufacturer
}

// Less orders keys lexicographically by (category, size, manufacturer).
func (k GroupKey) Less(o GroupKey) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	if k.Size != o.Size {
		return k.Size < o.Size
	}
	return k.Manufacturer < o.Manufacturer
}

// PartState is the per-part scheduling input to the order optimizer.
type PartState struct {
	PartID       int64   `json:"part_id"`
	OpeningStock float64 `json:"opening_stock"`
	LeadTimeDays int     `json:"lead_time_days"`
	PackSize     int     `json:"pack_size"`
	MOQ          int     `json:"moq"`
}

// OrderPlan is one scored (order-day, order-quantity) candidate.
type OrderPlan struct {
	DayOffset         int     `json:"day_offset"`
	Quantity          float64 `json:"quantity"`
	ExpectedUnitPrice float64 `json:"expected_unit_price"`
	ExpectedTotalCost float64 `json:"expected_total_cost"`
	StockoutPenalty   float64 `json:"stockout_penalty"`
	HoldingCost       float64 `json:"holding_cost"`
}
