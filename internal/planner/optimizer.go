// Package planner enumerates candidate order days over the projection horizon
// and scores each with the purchase + holding + stock-out cost model.
package planner

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/partpilot/forecast/internal/domain"
)

// Params are the scheduling knobs shared by all candidates of one part.
type Params struct {
	ServiceDays       int
	HoldingRatePerDay float64
	PenaltyMultiplier float64
}

// TopPlans scores every order day t in [0, H) where H = len(demand) and
// returns the three cheapest plans in ascending total cost. Ties break on the
// smaller day offset, then the smaller quantity. H <= 0 yields an empty slice.
func TopPlans(st domain.PartState, demand, price []float64, p Params) []domain.OrderPlan {
	h := len(demand)
	if h <= 0 || len(price) < h {
		return nil
	}

	// Malformed rows can carry a negative lead time; treat it as immediate
	// arrival rather than letting it index before the horizon start.
	lead := st.LeadTimeDays
	if lead < 0 {
		lead = 0
	}

	plans := make([]domain.OrderPlan, 0, h)
	for t := 0; t < h; t++ {
		arrival := t + lead

		preEnd := arrival
		if preEnd > h {
			preEnd = h
		}
		pre := floats.Sum(demand[:preEnd])
		stockAtArrival := st.OpeningStock - pre

		unit := price[t]
		penalty := math.Max(0, -stockAtArrival) * unit * p.PenaltyMultiplier

		window := coverageWindow(demand, arrival, p.ServiceDays)
		need := floats.Sum(window)

		q := math.Max(BaseOrder(need, stockAtArrival), float64(st.MOQ))
		if st.PackSize > 0 {
			q = roundUpToPack(q, float64(st.PackSize))
		}

		purchase := unit * q

		avgConsumed := 0.0
		if len(window) > 0 {
			avgConsumed = stat.Mean(window, nil) * float64(len(window))
		}
		avgCarry := math.Max(0, q-avgConsumed)
		windowDays := len(window)
		if windowDays < 1 {
			windowDays = 1
		}
		holding := p.HoldingRatePerDay * unit * avgCarry * float64(windowDays)

		plans = append(plans, domain.OrderPlan{
			DayOffset:         t,
			Quantity:          q,
			ExpectedUnitPrice: unit,
			ExpectedTotalCost: purchase + holding + penalty,
			StockoutPenalty:   penalty,
			HoldingCost:       holding,
		})
	}

	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].ExpectedTotalCost != plans[j].ExpectedTotalCost {
			return plans[i].ExpectedTotalCost < plans[j].ExpectedTotalCost
		}
		if plans[i].DayOffset != plans[j].DayOffset {
			return plans[i].DayOffset < plans[j].DayOffset
		}
		return plans[i].Quantity < plans[j].Quantity
	})

	if len(plans) > 3 {
		plans = plans[:3]
	}
	return plans
}

// BaseOrder is the unconstrained order quantity: the post-arrival demand not
// covered by whatever stock survives until arrival. The evaluator reuses this
// exact formula to derive order ground truth.
func BaseOrder(need, stockAtArrival float64) float64 {
	return math.Max(0, need-math.Max(0, stockAtArrival))
}

// ProjectedOrderQty applies the optimizer's quantity formula to a flat demand
// projection of usage30 over the horizon. It is the shared inference/eval path
// for deriving a 30-day order quantity from a demand estimate.
func ProjectedOrderQty(usage30, openingStock float64, leadTimeDays, horizon, serviceDays int) float64 {
	if horizon <= 0 {
		return 0
	}
	if leadTimeDays < 0 {
		leadTimeDays = 0
	}
	daily := math.Max(0, usage30) / float64(horizon)

	arrival := leadTimeDays
	preDays := arrival
	if preDays > horizon {
		preDays = horizon
	}
	stockAtArrival := openingStock - daily*float64(preDays)

	windowDays := 0
	if arrival < horizon {
		windowDays = serviceDays
		if arrival+windowDays > horizon {
			windowDays = horizon - arrival
		}
	}
	need := daily * float64(windowDays)

	return BaseOrder(need, stockAtArrival)
}

// coverageWindow is the demand slice [arrival, min(arrival+serviceDays, H)).
func coverageWindow(demand []float64, arrival, serviceDays int) []float64 {
	h := len(demand)
	if arrival >= h || serviceDays <= 0 {
		return nil
	}
	end := arrival + serviceDays
	if end > h {
		end = h
	}
	return demand[arrival:end]
}

func roundUpToPack(q, pack float64) float64 {
	if q <= 0 {
		return 0
	}
	return math.Ceil(q/pack) * pack
}
