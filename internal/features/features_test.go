package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
)

var testRoutes = []models.Route{
	{RouteID: "R001", Origin: "Leeds", Destination: "York", DistanceKM: 40, AvgTimeMins: 60},
	{RouteID: "R002", Origin: "Bath", Destination: "Bristol", DistanceKM: 20, AvgTimeMins: 35},
}

func at(day, hour int) time.Time {
	// 2024-01-01 is a Monday.
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestBuildShipmentFeatures(t *testing.T) {
	shipments := []models.Shipment{
		{ShipmentID: "1", RouteID: "R001", PlannedDeparture: at(1, 8), DelayMinutes: 10},
		{ShipmentID: "2", RouteID: "R001", PlannedDeparture: at(6, 14), DelayMinutes: 30},
		{ShipmentID: "3", RouteID: "R002", PlannedDeparture: at(7, 23), DelayMinutes: 0},
		{ShipmentID: "4", RouteID: "R999", PlannedDeparture: at(2, 9), DelayMinutes: 5},
		{ShipmentID: "5", RouteID: "R002", PlannedDeparture: at(3, 9), DelayMinutes: -4},
	}

	set, err := BuildShipmentFeatures(shipments, testRoutes)
	require.NoError(t, err)
	require.Len(t, set.Rows, 3)
	assert.Equal(t, DropReport{Unmatched: 1, Invalid: 1}, set.Dropped)

	first := set.Rows[0]
	assert.Equal(t, 40.0, first.DistanceKM)
	assert.Equal(t, 60.0, first.AvgTimeMins)
	assert.Equal(t, 8, first.HourOfDay)
	assert.Equal(t, 0, first.DayOfWeek, "Monday is day 0")
	assert.Equal(t, 0, first.IsWeekend)
	assert.Equal(t, 20.0, first.RouteAvgDelay, "route mean covers every row of the route")

	saturday := set.Rows[1]
	assert.Equal(t, 5, saturday.DayOfWeek)
	assert.Equal(t, 1, saturday.IsWeekend)

	sunday := set.Rows[2]
	assert.Equal(t, 6, sunday.DayOfWeek)
	assert.Equal(t, 1, sunday.IsWeekend)
	assert.Equal(t, 0.0, sunday.RouteAvgDelay)

	assert.Equal(t, []float64{40, 60, 8, 0, 0, 20}, first.Vector())
	assert.Len(t, first.Vector(), len(ShipmentFeatureNames))
}

func TestBuildShipmentFeatures_Errors(t *testing.T) {
	_, err := BuildShipmentFeatures(nil, testRoutes)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingData))

	_, err = BuildShipmentFeatures([]models.Shipment{{RouteID: "R001", PlannedDeparture: at(1, 1)}}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingData))

	set, err := BuildShipmentFeatures([]models.Shipment{
		{RouteID: "X", PlannedDeparture: at(1, 1)},
		{RouteID: "Y", PlannedDeparture: at(1, 2)},
	}, testRoutes)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeJoinMismatch))
	assert.Equal(t, 2, set.Dropped.Unmatched)
}

func TestRouteIndex_SkipsInvalidRoutes(t *testing.T) {
	idx := RouteIndex([]models.Route{
		{RouteID: "R1", DistanceKM: 10, AvgTimeMins: 20},
		{RouteID: "R1", DistanceKM: 99, AvgTimeMins: 99},
		{RouteID: "R2", DistanceKM: 0, AvgTimeMins: 20},
		{RouteID: "R3", DistanceKM: 5, AvgTimeMins: math.NaN()},
	})
	require.Len(t, idx, 1)
	assert.Equal(t, 10.0, idx["R1"].DistanceKM)
}

func reading(machine string, hour int, temp, vib, load float64, fault int) models.SensorReading {
	return models.SensorReading{
		MachineID:   machine,
		Timestamp:   time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Temperature: temp,
		Vibration:   vib,
		LoadPercent: load,
		FaultFlag:   fault,
	}
}

func TestBuildSensorFeatures_RollingWindow(t *testing.T) {
	machines := []models.Machine{{MachineID: "M1"}, {MachineID: "M2"}}
	readings := []models.SensorReading{
		reading("M1", 3, 76, 1.0, 40, 0),
		reading("M2", 0, 60, 0.5, 50, 0),
		reading("M1", 1, 70, 1.0, 40, 0),
		reading("M1", 2, 72, 1.0, 40, 1),
		reading("M3", 0, 99, 9.9, 99, 1),
	}
	original := append([]models.SensorReading(nil), readings...)

	set, err := BuildSensorFeatures(readings, machines, 2)
	require.NoError(t, err)
	assert.Equal(t, original, readings, "caller data must not be reordered")
	assert.Equal(t, 1, set.Dropped.Unmatched)
	require.Len(t, set.Rows, 4)

	// M1 sorted by time: 70, 72, 76.
	first := set.Rows[0]
	assert.Equal(t, "M1", first.MachineID)
	assert.Equal(t, 70.0, first.TempMean)
	assert.True(t, math.IsNaN(first.TempStd), "single-reading window has undefined std")
	assert.False(t, first.Complete())

	second := set.Rows[1]
	assert.InDelta(t, 71.0, second.TempMean, 1e-9)
	assert.InDelta(t, math.Sqrt(2), second.TempStd, 1e-9)
	assert.Equal(t, 0.0, second.VibStd, "constant values have zero, not undefined, std")
	assert.True(t, second.Complete())

	third := set.Rows[2]
	assert.InDelta(t, 74.0, third.TempMean, 1e-9, "window of 2 drops the oldest reading")
	assert.InDelta(t, math.Sqrt(8), third.TempStd, 1e-9)

	m2 := set.Rows[3]
	assert.Equal(t, "M2", m2.MachineID)
	assert.False(t, m2.Complete())

	assert.Len(t, set.Complete(), 2)

	latest := set.Latest()
	require.Len(t, latest, 1, "M2 has a single reading and no defined statistics")
	assert.Equal(t, 76.0, latest[0].Temperature)
	assert.Len(t, latest[0].Vector(), len(SensorFeatureNames))
}

func TestBuildSensorFeatures_Errors(t *testing.T) {
	_, err := BuildSensorFeatures(nil, []models.Machine{{MachineID: "M1"}}, 24)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingData))

	_, err = BuildSensorFeatures([]models.SensorReading{reading("M9", 1, 1, 1, 1, 0)}, []models.Machine{{MachineID: "M1"}}, 24)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeJoinMismatch))

	set, err := BuildSensorFeatures([]models.SensorReading{reading("M1", 1, math.NaN(), 1, 1, 0), reading("M1", 2, 1, 1, 1, 3)},
		[]models.Machine{{MachineID: "M1"}}, 24)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMissingData))
	assert.Equal(t, 2, set.Dropped.Invalid)
}
