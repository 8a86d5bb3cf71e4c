package features

import (
	"math"
	"time"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
)

// ShipmentFeatureNames lists the columns of ShipmentFeatures.Vector in order.
var ShipmentFeatureNames = []string{
	"distance_km", "avg_time_mins", "hour_of_day", "day_of_week", "is_weekend", "route_avg_delay",
}

type ShipmentFeatures struct {
	ShipmentID  string
	RouteID     string
	DistanceKM  float64
	AvgTimeMins float64
	HourOfDay   int
	// DayOfWeek counts from Monday = 0.
	DayOfWeek int
	IsWeekend int
	// RouteAvgDelay is the mean delay of the route over the whole input,
	// including the row itself. It leaks the label into training, so held-out
	// metrics are optimistic.
	RouteAvgDelay float64
	DelayMinutes  float64
}

func (f ShipmentFeatures) Vector() []float64 {
	return []float64{
		f.DistanceKM, f.AvgTimeMins, float64(f.HourOfDay), float64(f.DayOfWeek), float64(f.IsWeekend), f.RouteAvgDelay,
	}
}

type ShipmentSet struct {
	Rows []ShipmentFeatures
	// RouteAvgDelay holds the per-route historical mean attached to Rows.
	RouteAvgDelay map[string]float64
	Dropped       DropReport
}

// DayOfWeek maps t's weekday onto Monday = 0 … Sunday = 6.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func IsWeekend(dayOfWeek int) int {
	if dayOfWeek >= 5 {
		return 1
	}
	return 0
}

// RouteIndex keys valid routes by id; the first occurrence of a duplicate wins.
func RouteIndex(routes []models.Route) map[string]models.Route {
	idx := make(map[string]models.Route, len(routes))
	for _, r := range routes {
		if r.RouteID == "" || !(r.DistanceKM > 0) || !(r.AvgTimeMins > 0) {
			continue
		}
		if _, dup := idx[r.RouteID]; !dup {
			idx[r.RouteID] = r
		}
	}
	return idx
}

// BuildShipmentFeatures joins route attributes onto each shipment, derives the
// time fields from the planned departure and attaches the route's mean delay.
func BuildShipmentFeatures(shipments []models.Shipment, routes []models.Route) (ShipmentSet, error) {
	if len(shipments) == 0 {
		return ShipmentSet{}, apperrors.MissingData("shipments table is empty")
	}
	routeIdx := RouteIndex(routes)
	if len(routeIdx) == 0 {
		return ShipmentSet{}, apperrors.MissingData("routes table has no valid rows")
	}

	set := ShipmentSet{Rows: make([]ShipmentFeatures, 0, len(shipments))}
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, s := range shipments {
		route, ok := routeIdx[s.RouteID]
		if !ok {
			set.Dropped.Unmatched++
			continue
		}
		if s.PlannedDeparture.IsZero() || math.IsNaN(s.DelayMinutes) || math.IsInf(s.DelayMinutes, 0) || s.DelayMinutes < 0 {
			set.Dropped.Invalid++
			continue
		}

		dow := DayOfWeek(s.PlannedDeparture)
		set.Rows = append(set.Rows, ShipmentFeatures{
			ShipmentID:   s.ShipmentID,
			RouteID:      s.RouteID,
			DistanceKM:   route.DistanceKM,
			AvgTimeMins:  route.AvgTimeMins,
			HourOfDay:    s.PlannedDeparture.Hour(),
			DayOfWeek:    dow,
			IsWeekend:    IsWeekend(dow),
			DelayMinutes: s.DelayMinutes,
		})
		sums[s.RouteID] += s.DelayMinutes
		counts[s.RouteID]++
	}

	if len(set.Rows) == 0 {
		if set.Dropped.Unmatched > 0 && set.Dropped.Invalid == 0 {
			return set, apperrors.JoinMismatch("no shipment matched a known route").
				WithDetails("dropped %s", set.Dropped)
		}
		return set, apperrors.MissingData("no valid shipments").WithDetails("dropped %s", set.Dropped)
	}

	set.RouteAvgDelay = make(map[string]float64, len(sums))
	for id, sum := range sums {
		set.RouteAvgDelay[id] = sum / float64(counts[id])
	}
	for i := range set.Rows {
		set.Rows[i].RouteAvgDelay = set.RouteAvgDelay[set.Rows[i].RouteID]
	}
	return set, nil
}
