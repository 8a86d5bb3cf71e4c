package pricing

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/forecast"
	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
)

type ProductQuantity struct {
	ProductID string
	Quantity  int
}

// TopProducts ranks products by total ordered quantity, ties by product id.
// Negative quantities are skipped as they are when building demand series.
func TopProducts(orders []models.Order, n int) []ProductQuantity {
	totals := make(map[string]int)
	for _, o := range orders {
		if o.ProductID == "" || o.Quantity < 0 {
			continue
		}
		totals[o.ProductID] += o.Quantity
	}

	out := make([]ProductQuantity, 0, len(totals))
	for id, q := range totals {
		out = append(out, ProductQuantity{ProductID: id, Quantity: q})
	}
	slices.SortFunc(out, func(a, b ProductQuantity) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CompetitorAverages returns the mean observed competitor price per product.
func CompetitorAverages(prices []models.CompetitorPrice) map[string]float64 {
	sum := make(map[string]float64)
	count := make(map[string]int)
	for _, p := range prices {
		if p.Price <= 0 {
			continue
		}
		sum[p.ProductID] += p.Price
		count[p.ProductID]++
	}
	out := make(map[string]float64, len(sum))
	for id, s := range sum {
		out[id] = s / float64(count[id])
	}
	return out
}

type Recommender struct {
	forecaster forecast.Forecaster
	horizon    int
	topN       int
	logger     *slog.Logger
}

func NewRecommender(forecaster forecast.Forecaster, horizon, topN int, logger *slog.Logger) *Recommender {
	return &Recommender{
		forecaster: forecaster,
		horizon:    horizon,
		topN:       topN,
		logger:     observability.Component(logger, "pricing_recommender"),
	}
}

// Recommend prices the top products by ordered quantity. Products missing
// from the catalogue are skipped and counted in dropped. A product without
// usable history is priced on a zero forecast.
func (r *Recommender) Recommend(orders []models.Order, products []models.Product, competitors []models.CompetitorPrice) (recs []models.PricingRecommendation, dropped int, err error) {
	if len(orders) == 0 {
		return nil, 0, apperrors.MissingData("orders table is empty")
	}
	if len(products) == 0 {
		return nil, 0, apperrors.MissingData("products table is empty")
	}

	catalogue := make(map[string]models.Product, len(products))
	for _, p := range products {
		if _, dup := catalogue[p.ProductID]; !dup {
			catalogue[p.ProductID] = p
		}
	}
	competitorAvg := CompetitorAverages(competitors)

	for _, top := range TopProducts(orders, r.topN) {
		product, ok := catalogue[top.ProductID]
		if !ok {
			dropped++
			continue
		}

		avg, err := r.averageDemand(orders, product.ProductID)
		if err != nil {
			return nil, dropped, fmt.Errorf("forecast %s: %w", product.ProductID, err)
		}

		compPrice, ok := competitorAvg[product.ProductID]
		if !ok {
			compPrice = product.BasePrice
		}

		price := RecommendedPrice(product.BasePrice, product.Cost, compPrice, avg)
		recs = append(recs, models.PricingRecommendation{
			ProductID:              product.ProductID,
			Category:               product.Category,
			CurrentPrice:           product.BasePrice,
			RecommendedPrice:       price,
			CompetitorAvgPrice:     round(compPrice, 2),
			ForecastDemand:         round(avg, 0),
			ExpectedRevenueGainPct: RevenueGainPct(product.BasePrice, price, avg),
			Cost:                   product.Cost,
		})
	}

	r.logger.Info("pricing recommendations computed",
		"products", len(recs),
		"dropped_unmatched", dropped,
		"horizon_days", r.horizon,
	)
	return recs, dropped, nil
}

func (r *Recommender) averageDemand(orders []models.Order, productID string) (float64, error) {
	fc, _, err := forecast.ForecastProduct(orders, productID, r.horizon, r.forecaster)
	if apperrors.HasCode(err, apperrors.CodeMissingData) {
		r.logger.Debug("no demand history, using zero forecast", "product_id", productID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return forecast.MeanPoint(fc), nil
}
