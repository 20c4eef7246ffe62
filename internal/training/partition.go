// Package training fits and evaluates the per-group learners over a feature
// frame and assembles the persisted bundle.
package training

import (
	"math"
	"math/rand"
	"sort"

	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/features"
)

// Partition is one (category, size, manufacturer) slice of the frame with its
// train/test row indices. Groups too small to split keep every row for
// training and are excluded from evaluation aggregation.
type Partition struct {
	Key       domain.GroupKey
	TrainIdx  []int
	TestIdx   []int
	Evaluable bool
}

// MinEvalRows is the smallest group size that still gets a held-out split for
// the given eval fraction.
func MinEvalRows(evalSplit float64) int {
	if evalSplit <= 0 {
		return math.MaxInt
	}
	n := int(math.Ceil(1/evalSplit)) + 5
	if n < 10 {
		return 10
	}
	return n
}

// SplitGroups partitions the frame's rows by group key and performs a seeded
// random train/test split per group. The shuffle RNG is derived from the seed
// and the group key, so the split is stable regardless of group order.
func SplitGroups(f *features.Frame, evalSplit float64, seed int64) []Partition {
	byKey := map[domain.GroupKey][]int{}
	for i, k := range f.Keys {
		byKey[k] = append(byKey[k], i)
	}

	keys := make([]domain.GroupKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	minRows := MinEvalRows(evalSplit)
	out := make([]Partition, 0, len(keys))
	for _, k := range keys {
		rows := byKey[k]
		p := Partition{Key: k}

		if len(rows) < minRows {
			p.TrainIdx = rows
			out = append(out, p)
			continue
		}

		shuffled := append([]int(nil), rows...)
		rng := rand.New(rand.NewSource(groupSeed(seed, k)))
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		nTest := int(float64(len(shuffled)) * evalSplit)
		if nTest < 1 {
			nTest = 1
		}
		p.TestIdx = shuffled[:nTest]
		p.TrainIdx = shuffled[nTest:]
		p.Evaluable = true
		out = append(out, p)
	}
	return out
}

// groupSeed mixes the base seed with an FNV-1a hash of the key so each group
// draws an independent but reproducible random stream.
func groupSeed(seed int64, k domain.GroupKey) int64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	h := uint64(offset64)
	for _, b := range []byte(k.String()) {
		h ^= uint64(b)
		h *= prime64
	}
	return seed ^ int64(h&math.MaxInt64)
}
