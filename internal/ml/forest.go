// Package ml implements the bagged CART tree ensembles used for the per-group
// learners. Training is fully deterministic for a given seed: the sampling and
// feature-subset RNG is seeded explicitly and trees are grown sequentially, so
// two runs over the same matrix produce identical forests.
package ml

import (
	"errors"
	"math"
	"math/rand"
)

// Config sizes a forest. Zero values fall back to the documented defaults.
type Config struct {
	NumTrees int
	MaxDepth int     // 0 means unlimited
	MinLeaf  int     // minimum samples per leaf, default 2
	Features float64 // fraction of features tried per split; default 1/3 for regressors, sqrt for classifiers
	Seed     int64
}

// Forest is a bagged ensemble. Classification forests regress on 0/1 labels;
// the mean leaf vote is the positive-class probability.
type Forest struct {
	Trees          []Tree
	NumFeatures    int
	Classification bool
}

var errEmptyTrainingSet = errors.New("ml: empty training set")

// TrainRegressor fits a regression forest on X, y.
func TrainRegressor(x [][]float64, y []float64, cfg Config) (*Forest, error) {
	return train(x, y, cfg, false)
}

// TrainClassifier fits a binary classification forest. Labels are indicator
// values; Predict thresholds the mean vote at 0.5.
func TrainClassifier(x [][]float64, labels []bool, cfg Config) (*Forest, error) {
	y := make([]float64, len(labels))
	for i, v := range labels {
		if v {
			y[i] = 1
		}
	}
	return train(x, y, cfg, true)
}

func train(x [][]float64, y []float64, cfg Config, classification bool) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errEmptyTrainingSet
	}

	numTrees := cfg.NumTrees
	if numTrees <= 0 {
		numTrees = 50
	}
	minLeaf := cfg.MinLeaf
	if minLeaf <= 0 {
		minLeaf = 2
	}
	nFeatures := len(x[0])
	try := featuresPerSplit(cfg.Features, nFeatures, classification)

	rng := rand.New(rand.NewSource(cfg.Seed))
	f := &Forest{
		Trees:          make([]Tree, 0, numTrees),
		NumFeatures:    nFeatures,
		Classification: classification,
	}

	for t := 0; t < numTrees; t++ {
		// Bootstrap sample with replacement.
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}

		b := &treeBuilder{
			x:           x,
			y:           y,
			maxDepth:    cfg.MaxDepth,
			minLeaf:     minLeaf,
			featuresTry: try,
			rng:         rng,
			tree:        &Tree{},
		}
		b.build(idx, 0)
		f.Trees = append(f.Trees, *b.tree)
	}

	return f, nil
}

func featuresPerSplit(frac float64, nFeatures int, classification bool) int {
	if frac > 0 && frac <= 1 {
		return clampFeatures(int(math.Ceil(frac * float64(nFeatures))))
	}
	if classification {
		return clampFeatures(int(math.Ceil(math.Sqrt(float64(nFeatures)))))
	}
	return clampFeatures(nFeatures / 3)
}

func clampFeatures(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Predict returns the mean tree vote. For classification forests the value is
// the positive-class probability; callers threshold as needed.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// PredictClass thresholds the mean vote at 0.5.
func (f *Forest) PredictClass(x []float64) bool {
	return f.Predict(x) >= 0.5
}
