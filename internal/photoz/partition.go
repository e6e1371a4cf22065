package photoz

import (
	"fmt"
	"math"
	"math/rand"
)

// SplitTrainValidation partitions row indices 0..n-1 into disjoint,
// exhaustive training and validation masks. The first floor(n*frac)
// entries of a seeded permutation become the training set. The same
// seed and n always produce identical masks.
func SplitTrainValidation(n int, frac float64, seed int64) (trainMask, valMask []bool, err error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("partition: row count must be positive, got %d", n)
	}
	if frac <= 0 || frac >= 1 {
		return nil, nil, fmt.Errorf("partition: trainfrac %v outside (0,1)", frac)
	}
	numTrain := int(math.Floor(float64(n) * frac))
	if numTrain == 0 || numTrain == n {
		return nil, nil, fmt.Errorf("partition: trainfrac %v on %d rows leaves an empty set", frac, n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	trainMask = make([]bool, n)
	valMask = make([]bool, n)
	for _, idx := range perm[:numTrain] {
		trainMask[idx] = true
	}
	for _, idx := range perm[numTrain:] {
		valMask[idx] = true
	}
	return trainMask, valMask, nil
}
