package ml

import (
	"math"
	"math/rand"
)

// ForestConfig configures the isolation forest outlier detector.
type ForestConfig struct {
	NumTrees      int     `json:"num_trees"`
	SubSampleSize int     `json:"sub_sample_size"`
	MaxDepth      int     `json:"max_depth"`
	Contamination float64 `json:"contamination"`
	Seed          int64   `json:"seed"`
}

func (c *ForestConfig) defaults() {
	if c.NumTrees <= 0 {
		c.NumTrees = 100
	}
	if c.SubSampleSize <= 0 {
		c.SubSampleSize = 256
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = int(math.Ceil(math.Log2(float64(c.SubSampleSize)))) + 1
	}
	if c.Contamination <= 0 {
		c.Contamination = 0.05
	}
}

// ForestNode is one node of an isolation tree. Serialized with the artifact.
type ForestNode struct {
	SplitFeature int         `json:"f"`
	SplitValue   float64     `json:"v"`
	Left         *ForestNode `json:"l,omitempty"`
	Right        *ForestNode `json:"r,omitempty"`
	Size         int         `json:"n"`
	Leaf         bool        `json:"leaf"`
}

// IsolationForest isolates outliers with random axis-parallel splits. Points
// isolated in few splits score close to 1. The decision boundary is the
// (1-contamination) quantile of the training scores.
type IsolationForest struct {
	cfg      ForestConfig
	trees    []*ForestNode
	boundary float64
	rng      *rand.Rand
	trained  bool
}

func NewIsolationForest(cfg ForestConfig) *IsolationForest {
	cfg.defaults()
	return &IsolationForest{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Fit builds the trees and fixes the decision boundary from training scores.
func (f *IsolationForest) Fit(rows [][]float64) error {
	if len(rows) < 2 {
		return &InsufficientDataError{Needed: 2, Got: len(rows)}
	}
	f.trees = make([]*ForestNode, 0, f.cfg.NumTrees)
	for i := 0; i < f.cfg.NumTrees; i++ {
		sample := f.sample(rows)
		f.trees = append(f.trees, f.buildTree(sample, 0))
	}
	f.trained = true

	scores := make([]float64, len(rows))
	for i, row := range rows {
		scores[i] = f.score(row)
	}
	f.boundary = Percentile(scores, (1-f.cfg.Contamination)*100)
	return nil
}

// Score returns the anomaly score in (0,1) for one row.
func (f *IsolationForest) Score(row []float64) (float64, error) {
	if !f.trained {
		return 0, &NotTrainedError{Model: "isolation forest"}
	}
	return f.score(row), nil
}

// IsOutlier reports whether the row scores past the fitted boundary.
func (f *IsolationForest) IsOutlier(row []float64) (bool, float64, error) {
	s, err := f.Score(row)
	if err != nil {
		return false, 0, err
	}
	return s > f.boundary, s, nil
}

// Boundary exposes the fitted decision boundary.
func (f *IsolationForest) Boundary() float64 { return f.boundary }

func (f *IsolationForest) score(row []float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.trees))
	c := averagePathLength(f.cfg.SubSampleSize)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -avg/c)
}

func (f *IsolationForest) sample(rows [][]float64) [][]float64 {
	size := f.cfg.SubSampleSize
	if size > len(rows) {
		size = len(rows)
	}
	shuffled := make([][]float64, len(rows))
	copy(shuffled, rows)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := f.rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:size]
}

func (f *IsolationForest) buildTree(rows [][]float64, depth int) *ForestNode {
	if len(rows) <= 1 || depth >= f.cfg.MaxDepth || allIdentical(rows) {
		return &ForestNode{Size: len(rows), Leaf: true}
	}

	feature := f.rng.Intn(len(rows[0]))
	minVal, maxVal := featureRange(rows, feature)
	if maxVal == minVal {
		return &ForestNode{Size: len(rows), Leaf: true}
	}
	split := minVal + f.rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &ForestNode{Size: len(rows), Leaf: true}
	}

	return &ForestNode{
		SplitFeature: feature,
		SplitValue:   split,
		Left:         f.buildTree(left, depth+1),
		Right:        f.buildTree(right, depth+1),
		Size:         len(rows),
	}
}

func pathLength(node *ForestNode, row []float64, depth int) float64 {
	if node.Leaf {
		return float64(depth) + averagePathLength(node.Size)
	}
	if row[node.SplitFeature] < node.SplitValue {
		return pathLength(node.Left, row, depth+1)
	}
	return pathLength(node.Right, row, depth+1)
}

// averagePathLength is c(n), the expected unsuccessful-search depth in a BST.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	harmonic := math.Log(float64(n-1)) + 0.5772156649
	return 2*harmonic - 2*float64(n-1)/float64(n)
}

func allIdentical(rows [][]float64) bool {
	if len(rows) <= 1 {
		return true
	}
	first := rows[0]
	for _, row := range rows[1:] {
		for j := range first {
			if math.Abs(row[j]-first[j]) > 1e-10 {
				return false
			}
		}
	}
	return true
}

func featureRange(rows [][]float64, feature int) (float64, float64) {
	minVal, maxVal := rows[0][feature], rows[0][feature]
	for _, row := range rows {
		v := row[feature]
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}
