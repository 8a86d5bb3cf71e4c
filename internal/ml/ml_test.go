package ml

import (
	"context"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "udip-dashboard/internal/errors"
)

func smallForest(seed uint64) ForestOptions {
	opts := DefaultForestOptions(seed)
	opts.Trees = 15
	opts.MaxDepth = 6
	return opts
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 2)
	assert.Len(t, train, 8)

	all := append(slices.Clone(train), test...)
	slices.Sort(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)

	train2, test2, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2, "same seed must give the same split")
	assert.Equal(t, test, test2)
}

func TestTrainTestSplit_TooSmall(t *testing.T) {
	_, _, err := TrainTestSplit(1, 0.2, 42)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))

	train, test, err := TrainTestSplit(2, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}

func TestStratifiedSplit_PreservesRatio(t *testing.T) {
	labels := make([]int, 100)
	for i := range 20 {
		labels[i] = 1
	}

	train, test, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	positives := 0
	for _, i := range test {
		positives += labels[i]
	}
	assert.Equal(t, 4, positives, "test split should hold 20%% of the positives")
}

func TestStratifiedSplit_RareClass(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1}
	_, _, err := StratifiedSplit(labels, 0.2, 42)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))
}

func TestMetrics(t *testing.T) {
	actual := []float64{3, -0.5, 2, 7}
	predicted := []float64{2.5, 0, 2, 8}

	assert.InDelta(t, 0.5, MeanAbsoluteError(actual, predicted), 1e-9)
	assert.InDelta(t, 0.9486081370449679, R2Score(actual, predicted), 1e-9)
	assert.Equal(t, 0.0, R2Score([]float64{5, 5, 5}, []float64{4, 5, 6}), "constant target has no R²")
	assert.InDelta(t, 0.75, Accuracy([]int{1, 0, 1, 1}, []int{1, 0, 0, 1}), 1e-9)
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestRandomForestRegressor_LearnsStep(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := range 200 {
		x := float64(i % 20)
		X = append(X, []float64{x, float64(i % 3)})
		if x >= 10 {
			y = append(y, 100)
		} else {
			y = append(y, 0)
		}
	}

	model, err := NewRandomForestRegressor(smallForest(42)).Fit(context.Background(), X, y)
	require.NoError(t, err)

	pred := model.Predict([][]float64{{2, 0}, {15, 1}})
	assert.InDelta(t, 0, pred[0], 10)
	assert.InDelta(t, 100, pred[1], 10)
}

func TestRandomForestRegressor_Deterministic(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 3}, {3, 8}, {4, 1}, {5, 9}, {6, 2}, {7, 7}, {8, 4}}
	y := []float64{1, 4, 9, 16, 25, 36, 49, 64}
	query := [][]float64{{2.5, 4}, {6.5, 6}}

	opts := smallForest(7)
	opts.Workers = 1
	a, err := NewRandomForestRegressor(opts).Fit(context.Background(), X, y)
	require.NoError(t, err)

	opts.Workers = 8
	b, err := NewRandomForestRegressor(opts).Fit(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, a.Predict(query), b.Predict(query), "worker count must not change the fitted forest")
}

func TestRandomForestRegressor_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	r := NewRandomForestRegressor(smallForest(1))

	_, err := r.Fit(ctx, nil, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))

	_, err = r.Fit(ctx, [][]float64{{1}, {2, 3}}, []float64{1, 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))

	_, err = r.Fit(ctx, [][]float64{{1}, {math.NaN()}}, []float64{1, 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))
}

func TestRandomForestClassifier(t *testing.T) {
	var X [][]float64
	var labels []int
	for i := range 280 {
		temp := 60 + float64(i%20)
		vib := 0.5 + float64((i/20)%7)*0.25
		X = append(X, []float64{temp, vib, float64(i % 5)})
		if temp > 70 && vib > 1.2 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}

	model, err := NewRandomForestClassifier(smallForest(42)).Fit(context.Background(), X, labels)
	require.NoError(t, err)

	probs := model.PredictProba([][]float64{{79, 2.0, 0}, {61, 0.5, 0}})
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Greater(t, probs[0], probs[1])
	assert.Equal(t, []int{1, 0}, model.Predict([][]float64{{79, 2.0, 0}, {61, 0.5, 0}}))
}

func TestRandomForestClassifier_SingleClass(t *testing.T) {
	_, err := NewRandomForestClassifier(smallForest(1)).Fit(context.Background(),
		[][]float64{{1}, {2}, {3}}, []int{0, 0, 0})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))
}

func TestVotingForestClassifier(t *testing.T) {
	var X [][]float64
	var labels []int
	for i := range 200 {
		x := float64(i % 100)
		X = append(X, []float64{x, float64(i % 3)})
		if x >= 50 {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}

	model, err := NewVotingForestClassifier(30).Fit(context.Background(), X, labels)
	require.NoError(t, err)

	correct := 0
	for i, p := range model.Predict(X) {
		if p == labels[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(X)), 0.9)

	for _, p := range model.PredictProba([][]float64{{5, 0}, {95, 1}}) {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestVotingForestClassifier_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewVotingForestClassifier(10).Fit(ctx, [][]float64{{1}, {2}, {3}}, []int{1, 1, 1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))

	_, err = NewVotingForestClassifier(10).Fit(ctx, [][]float64{{1}, {2}}, []int{0, 2})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))

	_, err = NewVotingForestClassifier(0).Fit(ctx, [][]float64{{1}, {2}}, []int{0, 1})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelFit))
}

func BenchmarkRandomForestRegressor_Fit(b *testing.B) {
	rng := NewRand(1)
	X := make([][]float64, 2000)
	y := make([]float64, len(X))
	for i := range X {
		X[i] = []float64{rng.Float64() * 1000, rng.Float64() * 600, float64(rng.IntN(24)), float64(rng.IntN(7))}
		y[i] = X[i][0]/50 + X[i][2]
	}
	r := NewRandomForestRegressor(smallForest(1))

	for b.Loop() {
		if _, err := r.Fit(context.Background(), X, y); err != nil {
			b.Fatal(err)
		}
	}
}
