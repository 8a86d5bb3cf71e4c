// Package pricing recommends prices from forecast demand, competitor prices
// and the product's cost and base price.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MarginFloor is the minimum price as a multiple of cost.
	MarginFloor = 1.2
	// MarkupCap is the maximum price as a multiple of base price.
	MarkupCap = 1.5

	demandScale     = 100.0
	minDemandFactor = 0.7
	maxDemandFactor = 1.3
	competitorPull  = 0.1
)

// DemandFactor scales average daily demand into [0.7, 1.3].
func DemandFactor(avgForecast float64) float64 {
	return min(max(avgForecast/demandScale, minDemandFactor), maxDemandFactor)
}

// CompetitorFactor is the competitor-to-base price ratio, or 1 when either
// price is not positive.
func CompetitorFactor(competitorPrice, basePrice float64) float64 {
	if basePrice <= 0 || competitorPrice <= 0 {
		return 1
	}
	return competitorPrice / basePrice
}

// RecommendedPrice returns the price in cents within [1.2×cost, 1.5×basePrice].
// When the band is inverted the margin floor wins. Without a demand signal
// the base price is kept, clamped into the same band.
func RecommendedPrice(basePrice, cost, competitorPrice, avgForecast float64) float64 {
	raw := basePrice
	if avgForecast > 0 {
		raw = basePrice * DemandFactor(avgForecast) * (1 + competitorPull*(CompetitorFactor(competitorPrice, basePrice)-1))
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		raw = basePrice
	}

	floor := decimal.NewFromFloat(MarginFloor * cost).RoundCeil(2)
	ceiling := decimal.NewFromFloat(MarkupCap * basePrice).RoundFloor(2)

	price := decimal.NewFromFloat(raw).Round(2)
	if price.GreaterThan(ceiling) {
		price = ceiling
	}
	if price.LessThan(floor) {
		price = floor
	}
	return price.InexactFloat64()
}

// RevenueGainPct is the revenue change of moving from basePrice to
// recommended at the forecast volume, in percent rounded to 2 places. It is 0
// when the baseline revenue is 0.
func RevenueGainPct(basePrice, recommended, avgForecast float64) float64 {
	baseline := basePrice * avgForecast
	if baseline == 0 || math.IsNaN(baseline) {
		return 0
	}
	gain := (recommended*avgForecast - baseline) / baseline * 100
	return round(gain, 2)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
