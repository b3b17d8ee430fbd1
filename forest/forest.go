// Package forest implements a small random forest regressor over a single
// numeric feature. Trees are grown on bootstrap samples and split on the
// threshold that minimizes the summed squared error of both children.
package forest

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoSamples      = errors.New("forest: no samples")
	ErrLengthMismatch = errors.New("forest: features and targets differ in length")
)

// Options control how the forest is grown
type Options struct {
	Trees    int   // number of trees
	MaxDepth int   // 0 grows until leaves are pure or too small
	MinLeaf  int   // minimum samples per leaf
	Seed     int64 // seed for bootstrap sampling
}

// DefaultOptions mirrors the defaults of common random forest implementations
func DefaultOptions() Options {
	return Options{
		Trees:    100,
		MaxDepth: 0,
		MinLeaf:  1,
		Seed:     42,
	}
}

func (o Options) normalized() Options {
	if o.Trees <= 0 {
		o.Trees = 1
	}
	if o.MinLeaf <= 0 {
		o.MinLeaf = 1
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	return o
}

// Forest is a fitted ensemble of regression trees
type Forest struct {
	trees []*tree
}

// Fit grows a forest on x -> y
func Fit(x, y []float64, opts Options) (*Forest, error) {
	if len(x) != len(y) {
		return nil, ErrLengthMismatch
	}
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	opts = opts.normalized()
	rng := rand.New(rand.NewSource(opts.Seed))

	f := &Forest{trees: make([]*tree, 0, opts.Trees)}
	n := len(x)
	bx := make([]float64, n)
	by := make([]float64, n)
	picks := make([]int, n)
	inds := make([]int, n)

	for i := 0; i < opts.Trees; i++ {
		// Bootstrap sample, sorted by feature so every split is a contiguous range
		for j := 0; j < n; j++ {
			picks[j] = rng.Intn(n)
			bx[j] = x[picks[j]]
		}
		floats.Argsort(bx, inds)
		for j, k := range inds {
			by[j] = y[picks[k]]
		}
		f.trees = append(f.trees, grow(bx, by, opts))
	}
	return f, nil
}

// Predict returns the mean of all tree predictions
func (f *Forest) Predict(x float64) float64 {
	if f == nil || len(f.trees) == 0 {
		return 0
	}
	preds := make([]float64, len(f.trees))
	for i, t := range f.trees {
		preds[i] = t.predict(x)
	}
	return stat.Mean(preds, nil)
}

// PredictAll predicts every value of xs
func (f *Forest) PredictAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = f.Predict(x)
	}
	return out
}

// Size returns the number of trees
func (f *Forest) Size() int {
	return len(f.trees)
}
