// Package forecast turns a product's order history into a future demand curve.
//
// The bundled SimpleExponentialSmoothing projects one smoothed level across the
// whole horizon with a fixed ±20% band. It captures no trend or seasonality and
// its band is not a statistical interval; callers needing either can supply
// another Forecaster.
package forecast

import (
	"fmt"
	"time"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
)

const (
	DefaultAlpha = 0.3
	DefaultBand  = 0.2
)

type Forecaster interface {
	Fit(series Series) (Model, error)
}

type Model interface {
	// Forecast returns exactly periods consecutive days after the fitted series.
	Forecast(periods int) ([]models.Forecast, error)
}

type SimpleExponentialSmoothing struct {
	Alpha float64
	Band  float64
}

func NewSimpleExponentialSmoothing(alpha float64) *SimpleExponentialSmoothing {
	return &SimpleExponentialSmoothing{Alpha: alpha, Band: DefaultBand}
}

// Fit computes level₀ = y₀ and levelᵢ = α·yᵢ + (1−α)·levelᵢ₋₁.
func (s *SimpleExponentialSmoothing) Fit(series Series) (Model, error) {
	if series.Len() == 0 {
		return nil, apperrors.MissingData("cannot smooth an empty series")
	}
	if s.Alpha <= 0 || s.Alpha > 1 {
		return nil, apperrors.Validation(fmt.Sprintf("smoothing factor %v outside (0, 1]", s.Alpha))
	}
	if s.Band < 0 || s.Band > 1 {
		return nil, apperrors.Validation(fmt.Sprintf("interval band %v outside [0, 1]", s.Band))
	}

	level := series.Values[0]
	for _, y := range series.Values[1:] {
		level = s.Alpha*y + (1-s.Alpha)*level
	}
	return &flatModel{level: level, band: s.Band, last: series.End()}, nil
}

type flatModel struct {
	level float64
	band  float64
	last  time.Time
}

func (m *flatModel) Forecast(periods int) ([]models.Forecast, error) {
	if periods < 1 {
		return nil, apperrors.Validation(fmt.Sprintf("forecast horizon must be positive, got %d", periods))
	}
	lo, hi := m.level*(1-m.band), m.level*(1+m.band)
	out := make([]models.Forecast, periods)
	for i := range out {
		out[i] = models.Forecast{
			Date:  m.last.Add(time.Duration(i+1) * day),
			Point: m.level,
			Lower: min(lo, hi),
			Upper: max(lo, hi),
		}
	}
	return out, nil
}

// ForecastProduct builds the product's daily series and forecasts periods days.
func ForecastProduct(orders []models.Order, productID string, periods int, f Forecaster) ([]models.Forecast, Series, error) {
	series, err := DailySeries(orders, productID)
	if err != nil {
		return nil, Series{}, err
	}
	model, err := f.Fit(series)
	if err != nil {
		return nil, series, fmt.Errorf("fit %s: %w", productID, err)
	}
	fc, err := model.Forecast(periods)
	if err != nil {
		return nil, series, err
	}
	return fc, series, nil
}

// Zero is the forecast used when there is no demand history at all.
func Zero(after time.Time, periods int) []models.Forecast {
	out := make([]models.Forecast, max(periods, 0))
	start := Day(after)
	for i := range out {
		out[i] = models.Forecast{Date: start.Add(time.Duration(i+1) * day)}
	}
	return out
}

// MeanPoint averages the point estimates; an empty forecast averages to 0.
func MeanPoint(fc []models.Forecast) float64 {
	if len(fc) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range fc {
		sum += f.Point
	}
	return sum / float64(len(fc))
}
