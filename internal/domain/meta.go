package domain

import "time"

// Hyperparams are the learner settings recorded alongside a trained bundle.
type Hyperparams struct {
	RFReg    int   `json:"rf_reg"`
	RFDays   int   `json:"rf_days"`
	RFCls    int   `json:"rf_cls"`
	MaxDepth int   `json:"max_depth"`
	Seed     int64 `json:"seed"`

	EventProb float64 `json:"event_prob"`
	EventLo   float64 `json:"event_lo"`
	EventHi   float64 `json:"event_hi"`
}

// EvalMetrics holds pooled held-out accuracy. OrderMAEIsProxy is set when the
// dataset carried no effective order quantities and the order ground truth was
// derived from the true demand instead.
type EvalMetrics struct {
	DemandMAE       float64 `json:"demand_mae"`
	OrderMAE        float64 `json:"order_mae"`
	OrderMAEIsProxy bool    `json:"order_mae_is_proxy"`
	EvaluatedRows   int     `json:"evaluated_rows"`
}

// BundleMeta describes a persisted model bundle. CreatedAt is the ordering key
// between bundle versions.
type BundleMeta struct {
	CreatedAt time.Time `json:"created_at"`
	Years     []int     `json:"years"`

	Rows     int `json:"rows"`
	Parts    int `json:"parts"`
	Groups   int `json:"groups"`
	Features int `json:"features"`

	Hyperparams Hyperparams  `json:"hyperparams"`
	Metrics     *EvalMetrics `json:"metrics,omitempty"`
}
