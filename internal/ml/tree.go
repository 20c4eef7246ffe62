package ml

import (
	"math"
	"math/rand"
	"sort"
)

// Tree is a CART regression tree stored as parallel node arrays so that it
// gob-encodes compactly and deterministically. Leaves have Feature[i] == -1
// and carry the mean target in Value[i].
type Tree struct {
	Feature   []int
	Threshold []float64
	Left      []int
	Right     []int
	Value     []float64
}

// Predict walks the tree for a single feature vector.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for t.Feature[i] >= 0 {
		f := t.Feature[i]
		v := 0.0
		if f < len(x) {
			v = x[f]
		}
		if v <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

type treeBuilder struct {
	x           [][]float64
	y           []float64
	maxDepth    int
	minLeaf     int
	featuresTry int
	rng         *rand.Rand
	tree        *Tree
}

func (b *treeBuilder) addNode() int {
	b.tree.Feature = append(b.tree.Feature, -1)
	b.tree.Threshold = append(b.tree.Threshold, 0)
	b.tree.Left = append(b.tree.Left, -1)
	b.tree.Right = append(b.tree.Right, -1)
	b.tree.Value = append(b.tree.Value, 0)
	return len(b.tree.Feature) - 1
}

// build grows the subtree over sample indices idx and returns its node index.
func (b *treeBuilder) build(idx []int, depth int) int {
	node := b.addNode()

	mean, sse := meanSSE(b.y, idx)
	b.tree.Value[node] = mean

	if len(idx) < 2*b.minLeaf || sse <= 1e-12 {
		return node
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return node
	}

	feature, threshold, ok := b.bestSplit(idx, sse)
	if !ok {
		return node
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minLeaf || len(right) < b.minLeaf {
		return node
	}

	b.tree.Feature[node] = feature
	b.tree.Threshold[node] = threshold
	b.tree.Left[node] = b.build(left, depth+1)
	b.tree.Right[node] = b.build(right, depth+1)
	return node
}

// bestSplit evaluates a random feature subset and returns the split with the
// largest SSE reduction. Candidate thresholds are midpoints between distinct
// consecutive sorted values.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (int, float64, bool) {
	nFeatures := len(b.x[idx[0]])
	order := b.rng.Perm(nFeatures)
	try := b.featuresTry
	if try <= 0 || try > nFeatures {
		try = nFeatures
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestSSE := parentSSE

	sorted := make([]int, len(idx))
	for _, f := range order[:try] {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		// Prefix sums over the sorted order give O(1) SSE for every cut.
		sum, sumSq := 0.0, 0.0
		total, totalSq := 0.0, 0.0
		for _, i := range sorted {
			total += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}
		n := float64(len(sorted))

		for pos := 0; pos < len(sorted)-1; pos++ {
			yi := b.y[sorted[pos]]
			sum += yi
			sumSq += yi * yi

			xCur := b.x[sorted[pos]][f]
			xNext := b.x[sorted[pos+1]][f]
			if xNext <= xCur {
				continue
			}

			nl := float64(pos + 1)
			nr := n - nl
			sseL := sumSq - sum*sum/nl
			sseR := (totalSq - sumSq) - (total-sum)*(total-sum)/nr
			if s := sseL + sseR; s < bestSSE-1e-12 {
				bestSSE = s
				bestFeature = f
				bestThreshold = xCur + (xNext-xCur)/2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	mean := sum / float64(len(idx))
	sse := 0.0
	for _, i := range idx {
		d := y[i] - mean
		sse += d * d
	}
	if math.IsNaN(sse) {
		return mean, 0
	}
	return mean, sse
}
