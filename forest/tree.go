package forest

import (
	"gonum.org/v1/gonum/stat"
)

const leaf = -1

type node struct {
	threshold   float64
	value       float64
	left, right int
}

type tree struct {
	nodes []node
}

// grow builds a tree from samples sorted ascending by x
func grow(x, y []float64, opts Options) *tree {
	n := len(x)
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i := 0; i < n; i++ {
		sum[i+1] = sum[i] + y[i]
		sumSq[i+1] = sumSq[i] + y[i]*y[i]
	}
	t := &tree{}
	b := builder{x: x, y: y, sum: sum, sumSq: sumSq, opts: opts, t: t}
	b.build(0, n, 0)
	return t
}

type builder struct {
	x, y       []float64
	sum, sumSq []float64
	opts       Options
	t          *tree
}

// sse is the summed squared error of y[lo:hi] around its mean
func (b *builder) sse(lo, hi int) float64 {
	n := float64(hi - lo)
	s := b.sum[hi] - b.sum[lo]
	return (b.sumSq[hi] - b.sumSq[lo]) - s*s/n
}

func (b *builder) build(lo, hi, depth int) int {
	idx := len(b.t.nodes)
	b.t.nodes = append(b.t.nodes, node{
		value: stat.Mean(b.y[lo:hi], nil),
		left:  leaf,
		right: leaf,
	})

	if hi-lo < 2*b.opts.MinLeaf {
		return idx
	}
	if b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth {
		return idx
	}
	parent := b.sse(lo, hi)
	if parent <= 1e-12 {
		return idx
	}

	best, bestErr := -1, parent
	for i := lo + b.opts.MinLeaf; i <= hi-b.opts.MinLeaf; i++ {
		if b.x[i-1] == b.x[i] {
			continue
		}
		if e := b.sse(lo, i) + b.sse(i, hi); e < bestErr {
			best, bestErr = i, e
		}
	}
	if best < 0 {
		return idx
	}

	threshold := (b.x[best-1] + b.x[best]) / 2
	left := b.build(lo, best, depth+1)
	right := b.build(best, hi, depth+1)
	b.t.nodes[idx].threshold = threshold
	b.t.nodes[idx].left = left
	b.t.nodes[idx].right = right
	return idx
}

func (t *tree) predict(x float64) float64 {
	i := 0
	for {
		nd := t.nodes[i]
		if nd.left == leaf {
			return nd.value
		}
		if x <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
}
