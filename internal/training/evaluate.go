package training

import (
	"math"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/features"
	"github.com/partpilot/forecast/internal/planner"
)

// The evaluation order-quantity derivation uses the serving defaults.
const (
	evalHorizon     = 30
	evalServiceDays = 14
)

// Evaluate computes pooled held-out MAE for demand and for the derived 30-day
// order quantity across all evaluable partitions. When no row carries an
// effective historical order quantity, the order ground truth falls back to
// the base-order formula applied to the true demand; the metrics flag this so
// consumers know Order MAE is then mostly a proxy for Demand MAE.
func Evaluate(f *features.Frame, parts []Partition, b *bundle.Bundle) *domain.EvalMetrics {
	var (
		demandErr []float64
		orderErr  []float64
		effective int
	)

	for _, p := range parts {
		if !p.Evaluable {
			continue
		}
		models, ok := b.Lookup(p.Key)
		if !ok {
			log.Warn().Str("group", p.Key.String()).Msg("evaluator: group missing from bundle")
			continue
		}

		for _, i := range p.TestIdx {
			pred := math.Max(0, models.RegUsage.Predict(f.X[i]))
			truth := f.Future30[i]
			demandErr = append(demandErr, math.Abs(pred-truth))

			rec := f.Records[i]
			predQty := planner.ProjectedOrderQty(pred, rec.OpeningStock, rec.LeadTimeDays, evalHorizon, evalServiceDays)

			var trueQty float64
			if rec.OrderQtyEffective != nil {
				trueQty = *rec.OrderQtyEffective
				effective++
			} else {
				trueQty = planner.ProjectedOrderQty(truth, rec.OpeningStock, rec.LeadTimeDays, evalHorizon, evalServiceDays)
			}
			orderErr = append(orderErr, math.Abs(predQty-trueQty))
		}
	}

	m := &domain.EvalMetrics{EvaluatedRows: len(demandErr), OrderMAEIsProxy: effective == 0}
	if len(demandErr) > 0 {
		m.DemandMAE = stat.Mean(demandErr, nil)
		m.OrderMAE = stat.Mean(orderErr, nil)
	}

	log.Info().
		Int("rows", m.EvaluatedRows).
		Float64("demand_mae", m.DemandMAE).
		Float64("order_mae", m.OrderMAE).
		Bool("order_mae_is_proxy", m.OrderMAEIsProxy).
		Msg("evaluator: held-out metrics")

	return m
}
