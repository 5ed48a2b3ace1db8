package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const eulerMascheroni = 0.5772156649015329

// ForestConfig holds isolation forest fit parameters.
type ForestConfig struct {
	Estimators    int
	SubsampleSize int // 0 = min(256, n)
	Contamination float64
	Seed          int64
}

// IsolationForest is a seeded ensemble of isolation trees. Scoring follows
// the usual convention: DecisionFunction is negative for outliers, with the
// zero point calibrated so roughly the contamination fraction of the
// training population falls below it.
type IsolationForest struct {
	trees     []*isoNode
	subsample int
	offset    float64
}

type isoNode struct {
	feature int
	split   float64
	left    *isoNode
	right   *isoNode
	size    int // leaf only
}

// FitForest builds the ensemble on an already-normalized population.
func FitForest(data [][]float64, cfg ForestConfig) (*IsolationForest, error) {
	n := len(data)
	if n < 2 {
		return nil, fmt.Errorf("forest fit requires at least 2 samples, got %d", n)
	}
	if cfg.Estimators <= 0 {
		cfg.Estimators = 100
	}

	psi := cfg.SubsampleSize
	if psi <= 0 || psi > n {
		psi = 256
		if n < psi {
			psi = n
		}
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))

	rng := rand.New(rand.NewSource(cfg.Seed))

	f := &IsolationForest{
		trees:     make([]*isoNode, cfg.Estimators),
		subsample: psi,
	}

	for t := 0; t < cfg.Estimators; t++ {
		perm := rng.Perm(n)
		sample := make([][]float64, psi)
		for i := 0; i < psi; i++ {
			sample[i] = data[perm[i]]
		}
		f.trees[t] = buildTree(sample, 0, maxDepth, rng)
	}

	// Calibrate the decision threshold at the contamination quantile of
	// the training scores.
	scores := make([]float64, n)
	for i, row := range data {
		scores[i] = f.scoreSample(row)
	}
	sort.Float64s(scores)
	f.offset = stat.Quantile(cfg.Contamination, stat.Empirical, scores, nil)

	return f, nil
}

func buildTree(sample [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(sample) <= 1 {
		return &isoNode{size: len(sample)}
	}

	// Pick a random feature that still varies within this partition.
	dims := len(sample[0])
	candidates := make([]int, 0, dims)
	for j := 0; j < dims; j++ {
		lo, hi := sample[0][j], sample[0][j]
		for _, row := range sample[1:] {
			if row[j] < lo {
				lo = row[j]
			}
			if row[j] > hi {
				hi = row[j]
			}
		}
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(sample)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	lo, hi := sample[0][feature], sample[0][feature]
	for _, row := range sample[1:] {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, row := range sample {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &isoNode{size: len(sample)}
	}

	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildTree(left, depth+1, maxDepth, rng),
		right:   buildTree(right, depth+1, maxDepth, rng),
	}
}

// pathLength follows x down one tree; leaves add the average unresolved
// path length for the points they hold.
func pathLength(x []float64, node *isoNode, depth float64) float64 {
	if node.left == nil {
		return depth + avgPathLength(node.size)
	}
	if x[node.feature] < node.split {
		return pathLength(x, node.left, depth+1)
	}
	return pathLength(x, node.right, depth+1)
}

// avgPathLength is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerMascheroni) - 2*(fn-1)/fn
}

// scoreSample returns the negated anomaly score in [-1, 0); lower means
// more anomalous.
func (f *IsolationForest) scoreSample(x []float64) float64 {
	var total float64
	for _, tree := range f.trees {
		total += pathLength(x, tree, 0)
	}
	mean := total / float64(len(f.trees))
	return -math.Pow(2, -mean/avgPathLength(f.subsample))
}

// DecisionFunction returns the calibrated anomaly value: negative for
// outliers, positive for inliers.
func (f *IsolationForest) DecisionFunction(x []float64) float64 {
	return f.scoreSample(x) - f.offset
}
