package ml

import (
	"context"
	"slices"

	randomforest "github.com/malaschitz/randomForest"

	apperrors "udip-dashboard/internal/errors"
)

// VotingForestClassifier wraps github.com/malaschitz/randomForest. The
// library draws from the global math/rand source, so two fits on the same
// data may differ. Use RandomForestClassifier when runs must be reproducible.
type VotingForestClassifier struct {
	Trees int
}

func NewVotingForestClassifier(trees int) *VotingForestClassifier {
	return &VotingForestClassifier{Trees: trees}
}

func (c *VotingForestClassifier) Fit(ctx context.Context, X [][]float64, labels []int) (ClassificationModel, error) {
	if _, err := checkMatrix(X, len(labels)); err != nil {
		return nil, err
	}
	if _, err := binaryTargets(labels); err != nil {
		return nil, err
	}
	if c.Trees < 1 {
		return nil, apperrors.ModelFit("forest needs at least one tree")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.ModelFitWrap(err, "fit voting forest")
	}

	f := &randomforest.Forest{
		Data: randomforest.ForestData{X: slices.Clone(X), Class: slices.Clone(labels)},
	}
	f.Train(c.Trees)
	return votingModel{forest: f}, nil
}

type votingModel struct {
	forest *randomforest.Forest
}

// PredictProba returns the share of trees voting for label 1.
func (m votingModel) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		votes := m.forest.Vote(x)
		if len(votes) > 1 {
			out[i] = min(max(votes[1], 0), 1)
		}
	}
	return out
}

func (m votingModel) Predict(X [][]float64) []int {
	proba := m.PredictProba(X)
	out := make([]int, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out
}
