package features

import (
	"cmp"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/models"
)

const DefaultWindow = 24

// SensorFeatureNames lists the columns of SensorFeatures.Vector in order.
var SensorFeatureNames = []string{
	"temperature", "vibration", "load_percent",
	"temperature_rolling_mean", "temperature_rolling_std",
	"vibration_rolling_mean", "vibration_rolling_std",
	"load_percent_rolling_mean", "load_percent_rolling_std",
}

// SensorFeatures holds trailing-window statistics for one reading. The std
// fields are NaN when the window holds a single reading.
type SensorFeatures struct {
	MachineID   string
	Timestamp   time.Time
	Temperature float64
	Vibration   float64
	LoadPercent float64
	TempMean    float64
	TempStd     float64
	VibMean     float64
	VibStd      float64
	LoadMean    float64
	LoadStd     float64
	FaultFlag   int
}

// Complete reports whether every rolling statistic is defined.
func (f SensorFeatures) Complete() bool {
	return !math.IsNaN(f.TempStd) && !math.IsNaN(f.VibStd) && !math.IsNaN(f.LoadStd)
}

func (f SensorFeatures) Vector() []float64 {
	return []float64{
		f.Temperature, f.Vibration, f.LoadPercent,
		f.TempMean, f.TempStd,
		f.VibMean, f.VibStd,
		f.LoadMean, f.LoadStd,
	}
}

// SensorSet holds rows ordered by (machine_id, timestamp).
type SensorSet struct {
	Rows    []SensorFeatures
	Dropped DropReport
}

// Complete returns the rows whose rolling statistics are all defined.
func (s SensorSet) Complete() []SensorFeatures {
	out := make([]SensorFeatures, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// Latest returns the most recent row of each machine, skipping machines whose
// latest row has undefined statistics. Order follows machine_id.
func (s SensorSet) Latest() []SensorFeatures {
	var out []SensorFeatures
	for i, r := range s.Rows {
		last := i == len(s.Rows)-1 || s.Rows[i+1].MachineID != r.MachineID
		if last && r.Complete() {
			out = append(out, r)
		}
	}
	return out
}

// BuildSensorFeatures sorts readings by (machine_id, timestamp) and computes
// the rolling mean and sample standard deviation of temperature, vibration and
// load over the last window readings of each machine. Shorter histories use an
// expanding window. The caller's slice is not reordered.
func BuildSensorFeatures(readings []models.SensorReading, machines []models.Machine, window int) (SensorSet, error) {
	if len(readings) == 0 {
		return SensorSet{}, apperrors.MissingData("sensor readings table is empty")
	}
	if len(machines) == 0 {
		return SensorSet{}, apperrors.MissingData("machines table is empty")
	}
	if window < 1 {
		window = DefaultWindow
	}

	known := make(map[string]struct{}, len(machines))
	for _, m := range machines {
		known[m.MachineID] = struct{}{}
	}

	var set SensorSet
	valid := make([]models.SensorReading, 0, len(readings))
	for _, r := range readings {
		if _, ok := known[r.MachineID]; !ok {
			set.Dropped.Unmatched++
			continue
		}
		if !validReading(r) {
			set.Dropped.Invalid++
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		if set.Dropped.Invalid == 0 {
			return set, apperrors.JoinMismatch("no sensor reading matched a known machine").
				WithDetails("dropped %s", set.Dropped)
		}
		return set, apperrors.MissingData("no valid sensor readings").WithDetails("dropped %s", set.Dropped)
	}

	slices.SortStableFunc(valid, func(a, b models.SensorReading) int {
		if c := cmp.Compare(a.MachineID, b.MachineID); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	set.Rows = make([]SensorFeatures, len(valid))
	temp := make([]float64, 0, window)
	vib := make([]float64, 0, window)
	load := make([]float64, 0, window)

	start := 0
	for i, r := range valid {
		if i > 0 && r.MachineID != valid[i-1].MachineID {
			start = i
		}
		from := max(start, i-window+1)

		temp, vib, load = temp[:0], vib[:0], load[:0]
		for _, w := range valid[from : i+1] {
			temp = append(temp, w.Temperature)
			vib = append(vib, w.Vibration)
			load = append(load, w.LoadPercent)
		}

		f := SensorFeatures{
			MachineID:   r.MachineID,
			Timestamp:   r.Timestamp,
			Temperature: r.Temperature,
			Vibration:   r.Vibration,
			LoadPercent: r.LoadPercent,
			FaultFlag:   r.FaultFlag,
		}
		f.TempMean, f.TempStd = rolling(temp)
		f.VibMean, f.VibStd = rolling(vib)
		f.LoadMean, f.LoadStd = rolling(load)
		set.Rows[i] = f
	}
	return set, nil
}

func rolling(window []float64) (mean, std float64) {
	if len(window) < 2 {
		return window[0], math.NaN()
	}
	return stat.MeanStdDev(window, nil)
}

func validReading(r models.SensorReading) bool {
	if r.Timestamp.IsZero() || (r.FaultFlag != 0 && r.FaultFlag != 1) {
		return false
	}
	for _, v := range []float64{r.Temperature, r.Vibration, r.LoadPercent} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
