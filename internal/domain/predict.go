package domain

// PartInputRow is a single part's current state as submitted to the prediction
// service. Missing numeric fields decode to 0 and taxonomy fields are filled
// with sentinels during normalization, so partial rows are acceptable.
type PartInputRow struct {
	PartID       int64  `json:"part_id"`
	Category     string `json:"category"`
	Size         string `json:"size"`
	Manufacturer string `json:"manufacturer"`

	OpeningStock   float64 `json:"opening_stock"`
	ClosingStock   float64 `json:"closing_stock"`
	PlannedUsage   float64 `json:"planned_usage"`
	TodayUsage     float64 `json:"today_usage"`
	PendingInbound float64 `json:"pending_inbound_before_order"`
	LeadTimeDays   int     `json:"lead_time_days"`

	UnitPrice       float64 `json:"unit_price"`
	MonthlyDiscount float64 `json:"monthly_discount"`
	ShippingFee     float64 `json:"shipping_fee"`
	RegionFee       float64 `json:"region_fee"`

	// Recent-history aggregates, supplied by the caller when available.
	RollingMean7  float64 `json:"used_roll7"`
	RollingMean30 float64 `json:"used_roll30"`
	Lag1          float64 `json:"used_lag1"`
	Lag7          float64 `json:"used_lag7"`
	Lag30         float64 `json:"used_lag30"`
	RollingStd7   float64 `json:"used_std7"`
	RollingStd30  float64 `json:"used_std30"`

	// Per-part scheduling overrides; request-level values apply when nil.
	PackSize *int `json:"pack_size,omitempty"`
	MOQ      *int `json:"moq,omitempty"`
}

// PredictRequest carries optional overrides for the scheduling parameters.
// Nil means "use the configured default".
type PredictRequest struct {
	Limit             int      `json:"limit,omitempty"`
	Horizon           *int     `json:"horizon,omitempty"`
	ServiceDays       *int     `json:"service_days,omitempty"`
	HoldingRatePerDay *float64 `json:"holding_rate_per_day,omitempty"`
	PenaltyMultiplier *float64 `json:"penalty_multiplier,omitempty"`
	PackSize          *int     `json:"pack_size,omitempty"`
	MOQ               *int     `json:"moq,omitempty"`

	Parts []PartInputRow `json:"parts,omitempty"`
}

// BestDay pairs the recommended order day with a confidence estimate.
type BestDay struct {
	DayOffset int     `json:"day_offset"`
	Prob      float64 `json:"prob"`
}

// PredictItem is the per-part element of a predict response.
type PredictItem struct {
	PartID       int64  `json:"part_id"`
	Category     string `json:"category"`
	Size         string `json:"size"`
	Manufacturer string `json:"manufacturer"`

	TodayUsage   float64 `json:"today_usage"`
	OpeningStock float64 `json:"opening_stock"`

	PredictedOrderQty        float64 `json:"predicted_order_qty"`
	PredictedDaysToDepletion float64 `json:"predicted_days_to_depletion"`
	Warning                  bool    `json:"warning"`

	RecommendationsTop3 []OrderPlan `json:"recommendations_top3"`
	BestDayTop3         []BestDay   `json:"best_day_top3"`
}

// CategorySummary aggregates predicted depletion per category.
type CategorySummary struct {
	Category     string  `json:"category"`
	DaysPossible float64 `json:"days_possible"`
}

// PredictSummary is the response-level aggregate block.
type PredictSummary struct {
	Categories []CategorySummary `json:"categories"`
}

// PredictResponse is the full predict payload. Items preserve request order.
type PredictResponse struct {
	GeneratedAt string         `json:"generated_at"`
	NParts      int            `json:"n_parts"`
	Items       []PredictItem  `json:"items"`
	Summary     PredictSummary `json:"summary"`
}

// MetaResponse answers the metadata query.
type MetaResponse struct {
	Available bool        `json:"available"`
	Meta      *BundleMeta `json:"meta,omitempty"`
	UpdatedAt string      `json:"updated_at,omitempty"`
}
