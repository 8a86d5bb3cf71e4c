package ml

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	apperrors "udip-dashboard/internal/errors"
)

// ForestOptions configures a bagged ensemble of CART trees. Seed fixes every
// bootstrap sample and feature draw; tree i is seeded from Seed and i, so the
// fitted forest does not depend on Workers.
type ForestOptions struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the number of features examined per split; 0 selects the
	// default for the task (all for regression, √p for classification).
	MaxFeatures int
	Seed        uint64
	Workers     int
}

func DefaultForestOptions(seed uint64) ForestOptions {
	return ForestOptions{
		Trees:           100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		Seed:            seed,
		Workers:         4,
	}
}

type RandomForestRegressor struct {
	Options ForestOptions
}

func NewRandomForestRegressor(opts ForestOptions) *RandomForestRegressor {
	return &RandomForestRegressor{Options: opts}
}

func (r *RandomForestRegressor) Fit(ctx context.Context, X [][]float64, y []float64) (RegressionModel, error) {
	width, err := checkMatrix(X, len(y))
	if err != nil {
		return nil, err
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.ModelFit(fmt.Sprintf("target %d is not finite", i))
		}
	}

	maxFeatures := r.Options.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > width {
		maxFeatures = width
	}
	trees, err := fitForest(ctx, X, y, r.Options, maxFeatures)
	if err != nil {
		return nil, err
	}
	return forestRegression{forest{trees: trees}}, nil
}

type RandomForestClassifier struct {
	Options ForestOptions
}

func NewRandomForestClassifier(opts ForestOptions) *RandomForestClassifier {
	return &RandomForestClassifier{Options: opts}
}

func (c *RandomForestClassifier) Fit(ctx context.Context, X [][]float64, labels []int) (ClassificationModel, error) {
	width, err := checkMatrix(X, len(labels))
	if err != nil {
		return nil, err
	}

	y, err := binaryTargets(labels)
	if err != nil {
		return nil, err
	}

	maxFeatures := c.Options.MaxFeatures
	if maxFeatures <= 0 || maxFeatures > width {
		maxFeatures = max(1, int(math.Sqrt(float64(width))))
	}
	trees, err := fitForest(ctx, X, y, c.Options, maxFeatures)
	if err != nil {
		return nil, err
	}
	return forestClassification{forest{trees: trees}}, nil
}

// binaryTargets checks that labels are 0/1 with both classes present.
func binaryTargets(labels []int) ([]float64, error) {
	y := make([]float64, len(labels))
	seen := [2]bool{}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, apperrors.ModelFit(fmt.Sprintf("label %d at row %d is not binary", l, i))
		}
		y[i] = float64(l)
		seen[l] = true
	}
	if !seen[0] || !seen[1] {
		return nil, apperrors.ModelFit("training labels contain a single class")
	}
	return y, nil
}

func fitForest(ctx context.Context, X [][]float64, y []float64, opts ForestOptions, maxFeatures int) ([]*regressionTree, error) {
	if opts.Trees < 1 {
		return nil, apperrors.ModelFit("forest needs at least one tree")
	}
	params := treeParams{
		maxDepth:        max(opts.MaxDepth, 1),
		minSamplesSplit: max(opts.MinSamplesSplit, 2),
		maxFeatures:     maxFeatures,
	}

	trees := make([]*regressionTree, opts.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	for t := range opts.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := NewRand(opts.Seed + uint64(t)*0x2545f4914f6cdd1d)
			sample := make([]int, len(X))
			for i := range sample {
				sample[i] = rng.IntN(len(X))
			}
			trees[t] = growTree(X, y, sample, params, rng)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.ModelFitWrap(err, "fit random forest")
	}
	return trees, nil
}

// forest averages its trees; for 0/1 targets the average is P(label = 1).
type forest struct {
	trees []*regressionTree
}

func (f forest) average(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		sum := 0.0
		for _, t := range f.trees {
			sum += t.predict(x)
		}
		out[i] = sum / float64(len(f.trees))
	}
	return out
}

type forestRegression struct{ forest }

func (f forestRegression) Predict(X [][]float64) []float64 {
	return f.average(X)
}

type forestClassification struct{ forest }

func (f forestClassification) PredictProba(X [][]float64) []float64 {
	p := f.average(X)
	for i := range p {
		p[i] = min(max(p[i], 0), 1)
	}
	return p
}

func (f forestClassification) Predict(X [][]float64) []int {
	p := f.PredictProba(X)
	labels := make([]int, len(p))
	for i, v := range p {
		if v > 0.5 {
			labels[i] = 1
		}
	}
	return labels
}
