package logistics

import (
	"math"
	"slices"

	"udip-dashboard/internal/models"
)

const (
	avoidAbove   = 70
	monitorAbove = 40
)

// Recommend bands a risk score; boundary values fall in the lower band.
func Recommend(riskScore int) models.RouteRecommendation {
	switch {
	case riskScore > avoidAbove:
		return models.RecommendAvoid
	case riskScore > monitorAbove:
		return models.RecommendMonitor
	default:
		return models.RecommendOptimal
	}
}

// RiskScores scales each delay against the largest one onto 0–100. When no
// delay is positive every score is 0.
func RiskScores(delays []float64) []int {
	peak := 0.0
	for _, d := range delays {
		peak = max(peak, d)
	}
	scores := make([]int, len(delays))
	if peak <= 0 {
		return scores
	}
	for i, d := range delays {
		scores[i] = int(min(max(math.Round(100*d/peak), 0), 100))
	}
	return scores
}

// RecommendRoutes averages predicted delay per route, scores and bands each
// route, and returns the topN riskiest (all when topN <= 0). Ties keep the
// order in which routes first appear in predictions. When routes is non-empty,
// predictions for unknown routes are dropped and counted; origin, destination
// and distance are copied from the matching route.
func RecommendRoutes(predictions []models.DelayPrediction, routes []models.Route, topN int) ([]models.RouteRisk, int) {
	ref := make(map[string]models.Route, len(routes))
	for _, r := range routes {
		if _, dup := ref[r.RouteID]; !dup {
			ref[r.RouteID] = r
		}
	}

	var order []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	dropped := 0

	for _, p := range predictions {
		if len(ref) > 0 {
			if _, ok := ref[p.RouteID]; !ok {
				dropped++
				continue
			}
		}
		if _, ok := counts[p.RouteID]; !ok {
			order = append(order, p.RouteID)
		}
		sums[p.RouteID] += p.PredictedDelay
		counts[p.RouteID]++
	}

	means := make([]float64, len(order))
	for i, id := range order {
		means[i] = sums[id] / float64(counts[id])
	}
	scores := RiskScores(means)

	risks := make([]models.RouteRisk, len(order))
	for i, id := range order {
		r := ref[id]
		risks[i] = models.RouteRisk{
			RouteID:        id,
			Origin:         r.Origin,
			Destination:    r.Destination,
			DistanceKM:     r.DistanceKM,
			PredictedDelay: means[i],
			RiskScore:      scores[i],
			Recommendation: Recommend(scores[i]),
		}
	}

	slices.SortStableFunc(risks, func(a, b models.RouteRisk) int {
		return b.RiskScore - a.RiskScore
	})
	if topN > 0 && len(risks) > topN {
		risks = risks[:topN]
	}
	return risks, dropped
}
