package training

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/features"
	"github.com/partpilot/forecast/internal/ml"
)

// DefaultHyperparams mirror the trainer CLI defaults.
func DefaultHyperparams() domain.Hyperparams {
	return domain.Hyperparams{
		RFReg:     60,
		RFDays:    40,
		RFCls:     40,
		MaxDepth:  0,
		Seed:      42,
		EventProb: 0.08,
		EventLo:   0.03,
		EventHi:   0.08,
	}
}

// Train fits the four learners for every partition and returns the assembled
// bundle (without metrics; see Evaluate). Groups train in parallel; each group
// derives its RNG from the shared seed and its own key, so the result is
// identical no matter how the scheduler interleaves them.
func Train(ctx context.Context, f *features.Frame, parts []Partition, hp domain.Hyperparams, now time.Time, years []int) (*bundle.Bundle, error) {
	entries := make([]bundle.GroupEntry, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range parts {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			p := parts[i]
			models, err := trainGroup(f, p, hp)
			if err != nil {
				return fmt.Errorf("group %s: %w", p.Key, err)
			}
			entries[i] = bundle.GroupEntry{Key: p.Key, Models: models}
			log.Debug().
				Str("group", p.Key.String()).
				Int("train_rows", len(p.TrainIdx)).
				Int("test_rows", len(p.TestIdx)).
				Msg("trainer: group fitted")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Less(entries[j].Key) })

	return &bundle.Bundle{
		FeatureColumns: f.Columns,
		Groups:         entries,
		Meta: domain.BundleMeta{
			CreatedAt:   now.UTC(),
			Years:       years,
			Rows:        len(f.X),
			Parts:       f.PartCount,
			Groups:      len(entries),
			Features:    len(f.Columns),
			Hyperparams: hp,
		},
	}, nil
}

func trainGroup(f *features.Frame, p Partition, hp domain.Hyperparams) (bundle.GroupModels, error) {
	x := gather(f.X, p.TrainIdx)
	seed := groupSeed(hp.Seed, p.Key)

	usage := gatherFloats(f.Future30, p.TrainIdx)
	perturbLabels(usage, hp, seed)
	regUsage, err := ml.TrainRegressor(x, usage, ml.Config{
		NumTrees: hp.RFReg, MaxDepth: hp.MaxDepth, Seed: seed,
	})
	if err != nil {
		return bundle.GroupModels{}, fmt.Errorf("reg_usage: %w", err)
	}

	regDays, err := ml.TrainRegressor(x, gatherFloats(f.DaysToZero, p.TrainIdx), ml.Config{
		NumTrees: hp.RFDays, MaxDepth: hp.MaxDepth, Seed: seed,
	})
	if err != nil {
		return bundle.GroupModels{}, fmt.Errorf("reg_days: %w", err)
	}

	cls6m, err := ml.TrainClassifier(x, gatherBools(f.Risk6m, p.TrainIdx), ml.Config{
		NumTrees: hp.RFCls, MaxDepth: hp.MaxDepth, Seed: seed,
	})
	if err != nil {
		return bundle.GroupModels{}, fmt.Errorf("cls_6m: %w", err)
	}

	cls12m, err := ml.TrainClassifier(x, gatherBools(f.Risk12m, p.TrainIdx), ml.Config{
		NumTrees: hp.RFCls, MaxDepth: hp.MaxDepth, Seed: seed,
	})
	if err != nil {
		return bundle.GroupModels{}, fmt.Errorf("cls_12m: %w", err)
	}

	return bundle.GroupModels{RegUsage: regUsage, RegDays: regDays, Cls6m: cls6m, Cls12m: cls12m}, nil
}

// perturbLabels injects quantity-mismatch noise into the demand labels: with
// probability EventProb each label is scaled by a factor drawn uniformly from
// [1-EventLo, 1+EventHi]. The RNG stream is separate from the fitting RNG so
// the same rows are perturbed regardless of forest sizing.
func perturbLabels(y []float64, hp domain.Hyperparams, seed int64) {
	if hp.EventProb <= 0 {
		return
	}
	rng := rand.New(rand.NewSource(seed + 1))
	lo := 1 - hp.EventLo
	hi := 1 + hp.EventHi
	for i := range y {
		if rng.Float64() < hp.EventProb {
			y[i] *= lo + rng.Float64()*(hi-lo)
		}
	}
}

func gather(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func gatherFloats(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

func gatherBools(v []bool, idx []int) []bool {
	out := make([]bool, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}
