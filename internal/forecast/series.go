package forecast

import (
	"time"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
)

const day = 24 * time.Hour

// Series is a gap-free daily sequence starting at Start (midnight UTC).
type Series struct {
	Start  time.Time
	Values []float64
}

func (s Series) Len() int { return len(s.Values) }

// End is the date of the last observation.
func (s Series) End() time.Time {
	return s.Start.Add(time.Duration(len(s.Values)-1) * day)
}

func (s Series) Points() []models.DailyQuantity {
	out := make([]models.DailyQuantity, len(s.Values))
	for i, v := range s.Values {
		out[i] = models.DailyQuantity{Date: s.Start.Add(time.Duration(i) * day), Quantity: v}
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailySeries sums the product's order quantities per calendar day over
// [first order day, last order day]. Days without orders hold zero. Orders
// with a negative quantity are ignored.
func DailySeries(orders []models.Order, productID string) (Series, error) {
	totals := make(map[time.Time]float64)
	var first, last time.Time

	for _, o := range orders {
		if o.ProductID != productID || o.Quantity < 0 || o.OrderDate.IsZero() {
			continue
		}
		d := Day(o.OrderDate)
		if len(totals) == 0 || d.Before(first) {
			first = d
		}
		if len(totals) == 0 || d.After(last) {
			last = d
		}
		totals[d] += float64(o.Quantity)
	}

	if len(totals) == 0 {
		return Series{}, apperrors.MissingData("no orders for product").WithDetails("product_id=%s", productID)
	}

	n := int(last.Sub(first)/day) + 1
	values := make([]float64, n)
	for d, q := range totals {
		values[int(d.Sub(first)/day)] = q
	}
	return Series{Start: first, Values: values}, nil
}
