package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	apperrors "udip-dashboard/internal/errors"
)

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// TrainTestSplit shuffles 0..n-1 with seed and holds out ceil(n×testFraction)
// indices for testing. Both sides are guaranteed non-empty.
func TrainTestSplit(n int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, apperrors.ModelFit(fmt.Sprintf("test fraction %v outside (0, 1)", testFraction))
	}
	if n < 2 {
		return nil, nil, apperrors.ModelFit(fmt.Sprintf("need at least 2 rows to split, got %d", n))
	}

	nTest := min(max(int(math.Ceil(float64(n)*testFraction)), 1), n-1)
	perm := NewRand(seed).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// StratifiedSplit holds out testFraction of every class so that train and test
// keep the label ratio of the input. Each class needs at least two members.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, apperrors.ModelFit(fmt.Sprintf("test fraction %v outside (0, 1)", testFraction))
	}

	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	slices.Sort(classes)

	rng := NewRand(seed)
	for _, c := range classes {
		members := byClass[c]
		if len(members) < 2 {
			return nil, nil, apperrors.ModelFit(
				fmt.Sprintf("class %d has %d member(s); stratified split needs at least 2", c, len(members)))
		}
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })

		nTest := min(max(int(math.Round(float64(len(members))*testFraction)), 1), len(members)-1)
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}

	// Interleave classes so callers iterating in order see a mixed sequence.
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// Rows gathers X[i] for each index.
func Rows(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for k, i := range idx {
		out[k] = X[i]
	}
	return out
}

// Pick gathers v[i] for each index.
func Pick[T any](v []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}
