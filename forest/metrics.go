package forest

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// MeanAbsoluteError of predictions against true values
func MeanAbsoluteError(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	var total float64
	for i := range yTrue {
		total += math.Abs(yTrue[i] - yPred[i])
	}
	return total / float64(len(yTrue))
}

// R2Score is the coefficient of determination. Constant targets score 1 when
// predicted exactly and 0 otherwise, so the result is always finite.
func R2Score(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i := range yTrue {
		ssRes += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
		ssTot += (yTrue[i] - mean) * (yTrue[i] - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// TrainTestSplit shuffles n sample indices with seed and holds out
// ceil(testFraction*n) of them. When the hold-out would leave nothing to
// train on, every index goes to the training set and test is empty.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(testFraction*float64(n) - 1e-9))
	if nTest < 0 {
		nTest = 0
	}
	if n-nTest < 1 {
		return perm, nil
	}
	return perm[nTest:], perm[:nTest]
}
