// Package predict serves per-part forecasts and order recommendations from
// the persisted model bundle. The service is transport-agnostic; the HTTP
// layer is a thin adapter over it.
package predict

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/cache"
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/features"
	"github.com/partpilot/forecast/internal/normalize"
	"github.com/partpilot/forecast/internal/planner"
)

// Serving defaults applied when the request carries no override.
const (
	DefaultHorizon           = 30
	DefaultServiceDays       = 14
	DefaultHoldingRatePerDay = 5e-4
	DefaultPenaltyMultiplier = 5.0
	DefaultPackSize          = 100
	DefaultMOQ               = 0

	// warningThresholdDays flags parts predicted to deplete within a week.
	warningThresholdDays = 7
)

// Service answers predict and metadata queries.
type Service struct {
	store *bundle.Store
	cache cache.PredictionCache
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache attaches a prediction-response cache.
func WithCache(c cache.PredictionCache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService wires a service over a bundle store.
func NewService(store *bundle.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		cache: cache.NewNoopPredictionCache(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Meta answers the metadata query. A missing bundle is not an error here; it
// reports available=false.
func (s *Service) Meta(ctx context.Context) (*domain.MetaResponse, error) {
	b, err := s.store.Load()
	if err != nil {
		if err == bundle.ErrBundleUnavailable {
			return &domain.MetaResponse{Available: false}, nil
		}
		return nil, err
	}
	return &domain.MetaResponse{
		Available: true,
		Meta:      &b.Meta,
		UpdatedAt: s.store.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// Predict produces per-part forecasts and top-3 order plans. Items preserve
// the request's part order. Row-level anomalies are logged and skipped so one
// malformed row cannot block the batch; only a missing bundle fails the call.
func (s *Service) Predict(ctx context.Context, req domain.PredictRequest) (*domain.PredictResponse, error) {
	b, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	key := cache.PredictRequestKey(req, s.store.ModTime())
	if resp, ok, cerr := s.cache.Get(ctx, key); cerr == nil && ok {
		return resp, nil
	} else if cerr != nil {
		log.Warn().Err(cerr).Msg("predict: cache get failed")
	}

	now := s.now()
	horizon := intOrDefault(req.Horizon, DefaultHorizon)

	parts := req.Parts
	if req.Limit > 0 && req.Limit < len(parts) {
		parts = parts[:req.Limit]
	}

	resp := &domain.PredictResponse{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Items:       make([]domain.PredictItem, 0, len(parts)),
	}

	// A degenerate horizon still yields per-part depletion estimates; only
	// the order planning drops out (no demand days to plan against).
	if len(parts) == 0 {
		resp.Summary.Categories = []domain.CategorySummary{}
		return resp, nil
	}

	params := planner.Params{
		ServiceDays:       intOrDefault(req.ServiceDays, DefaultServiceDays),
		HoldingRatePerDay: floatOrDefault(req.HoldingRatePerDay, DefaultHoldingRatePerDay),
		PenaltyMultiplier: floatOrDefault(req.PenaltyMultiplier, DefaultPenaltyMultiplier),
	}
	reqPack := intOrDefault(req.PackSize, DefaultPackSize)
	reqMOQ := intOrDefault(req.MOQ, DefaultMOQ)

	daysByCategory := map[string][]float64{}
	for _, row := range parts {
		item, ok := s.predictRow(b, row, now, horizon, params, reqPack, reqMOQ)
		if !ok {
			continue
		}
		resp.Items = append(resp.Items, item)
		daysByCategory[item.Category] = append(daysByCategory[item.Category], item.PredictedDaysToDepletion)
	}

	resp.NParts = len(resp.Items)
	resp.Summary.Categories = summarizeCategories(daysByCategory)

	if err := s.cache.Set(ctx, key, resp); err != nil {
		log.Warn().Err(err).Msg("predict: cache set failed")
	}
	return resp, nil
}

func (s *Service) predictRow(b *bundle.Bundle, row domain.PartInputRow, now time.Time, horizon int, params planner.Params, reqPack, reqMOQ int) (domain.PredictItem, bool) {
	normalize.InputRow(&row)

	key := domain.GroupKey{Category: row.Category, Size: row.Size, Manufacturer: row.Manufacturer}
	models, ok := b.Resolve(key)
	if !ok || models.RegUsage == nil || models.RegDays == nil {
		log.Warn().Int64("part_id", row.PartID).Str("group", key.String()).Msg("predict: no model for part, skipping")
		return domain.PredictItem{}, false
	}

	values := features.InputValues(row, int(now.Weekday()), int(now.Month()))
	x := features.Vector(b.FeatureColumns, values)

	usage30 := math.Max(0, models.RegUsage.Predict(x))
	days := round2(models.RegDays.Predict(x))

	st := domain.PartState{
		PartID:       row.PartID,
		OpeningStock: math.Max(0, row.OpeningStock),
		LeadTimeDays: row.LeadTimeDays,
		PackSize:     intOrDefault(row.PackSize, reqPack),
		MOQ:          intOrDefault(row.MOQ, reqMOQ),
	}

	demand := FlatDemand(usage30, horizon)
	price := PriceSeries(row.UnitPrice, horizon, row.PartID)
	plans := planner.TopPlans(st, demand, price, params)
	if plans == nil {
		plans = []domain.OrderPlan{}
	}

	item := domain.PredictItem{
		PartID:                   row.PartID,
		Category:                 row.Category,
		Size:                     row.Size,
		Manufacturer:             row.Manufacturer,
		TodayUsage:               row.TodayUsage,
		OpeningStock:             st.OpeningStock,
		PredictedDaysToDepletion: days,
		Warning:                  days <= warningThresholdDays,
		RecommendationsTop3:      plans,
		BestDayTop3:              []domain.BestDay{},
	}
	if len(plans) > 0 {
		item.PredictedOrderQty = plans[0].Quantity
		item.BestDayTop3 = []domain.BestDay{{
			DayOffset: plans[0].DayOffset,
			Prob:      planConfidence(plans),
		}}
	}
	return item, true
}

// planConfidence scores how decisively the best plan beats the runner-up: a
// wide cost gap reads as high confidence, a near-tie as a coin flip. Bounded
// to [0.5, 0.95].
func planConfidence(plans []domain.OrderPlan) float64 {
	if len(plans) < 2 || plans[1].ExpectedTotalCost <= 0 {
		return 0.5
	}
	gap := (plans[1].ExpectedTotalCost - plans[0].ExpectedTotalCost) / plans[1].ExpectedTotalCost
	p := 0.5 + 0.45*gap
	if p < 0.5 {
		return 0.5
	}
	if p > 0.95 {
		return 0.95
	}
	return round2(p)
}

func summarizeCategories(daysByCategory map[string][]float64) []domain.CategorySummary {
	out := make([]domain.CategorySummary, 0, len(daysByCategory))
	for category, days := range daysByCategory {
		sum := 0.0
		for _, d := range days {
			sum += d
		}
		out = append(out, domain.CategorySummary{
			Category:     category,
			DaysPossible: round2(sum / float64(len(days))),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
