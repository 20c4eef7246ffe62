package predict

import (
	"math"
	"math/rand"
)

// priceJitterStd keeps successive projected days from being bit-identical so
// the optimizer's day comparison stays well-defined under a flat-price regime.
const priceJitterStd = 0.002

// defaultUnitPrice stands in when a request row carries no usable price.
const defaultUnitPrice = 100

// FlatDemand projects the model's 30-day usage estimate as a constant daily
// rate over the horizon, clipped at zero.
func FlatDemand(usage30 float64, horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	daily := math.Max(0, usage30) / float64(horizon)
	out := make([]float64, horizon)
	for i := range out {
		out[i] = daily
	}
	return out
}

// PriceSeries projects per-day unit prices: the base price with a small
// deterministic perturbation. The RNG is seeded per part so repeated requests
// for the same part see the same sequence.
func PriceSeries(base float64, horizon int, seed int64) []float64 {
	if horizon <= 0 {
		return nil
	}
	if base <= 0 {
		base = defaultUnitPrice
	}
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, horizon)
	for i := range out {
		out[i] = base * (1 + rng.NormFloat64()*priceJitterStd)
	}
	return out
}
