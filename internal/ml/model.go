// Package ml provides the model capabilities the analytics pipeline consumes:
// regression and binary classification trainers, seeded data splits and
// held-out metrics. Pipeline stages depend on the interfaces only, so any
// trainer satisfying them can replace the bundled random forests.
package ml

import (
	"context"
	"fmt"
	"math"

	apperrors "udip-dashboard/internal/errors"
)

// Regressor fits a model mapping feature rows to a continuous target.
type Regressor interface {
	Fit(ctx context.Context, X [][]float64, y []float64) (RegressionModel, error)
}

type RegressionModel interface {
	Predict(X [][]float64) []float64
}

// Classifier fits a model mapping feature rows to a 0/1 label.
type Classifier interface {
	Fit(ctx context.Context, X [][]float64, labels []int) (ClassificationModel, error)
}

type ClassificationModel interface {
	Predict(X [][]float64) []int
	// PredictProba returns P(label = 1) in [0, 1] for each row.
	PredictProba(X [][]float64) []float64
}

// checkMatrix rejects ragged, empty or non-finite inputs before fitting.
func checkMatrix(X [][]float64, n int) (int, error) {
	if len(X) == 0 {
		return 0, apperrors.ModelFit("no training rows")
	}
	if len(X) != n {
		return 0, apperrors.ModelFit(fmt.Sprintf("feature rows (%d) and targets (%d) differ", len(X), n))
	}
	width := len(X[0])
	if width == 0 {
		return 0, apperrors.ModelFit("feature rows have no columns")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, apperrors.ModelFit(fmt.Sprintf("row %d has %d features, want %d", i, len(row), width))
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, apperrors.ModelFit(fmt.Sprintf("row %d holds a non-finite feature", i))
			}
		}
	}
	return width, nil
}
