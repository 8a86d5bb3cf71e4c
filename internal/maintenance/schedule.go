package maintenance

import (
	"cmp"
	"slices"

	"udip-dashboard/internal/models"
)

const (
	// ScheduleThreshold is the risk score above which a machine is scheduled.
	ScheduleThreshold = 50
	urgentThreshold   = 70
)

func sortByRisk(rows []models.MachineHealth) {
	slices.SortStableFunc(rows, func(a, b models.MachineHealth) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	})
}

// Schedule lists machines whose risk score exceeds ScheduleThreshold, most
// urgent first.
func Schedule(health []models.MachineHealth) []models.MaintenanceTask {
	var tasks []models.MaintenanceTask
	for _, h := range health {
		if h.RiskScore <= ScheduleThreshold {
			continue
		}
		priority := "High"
		if h.RiskScore > urgentThreshold {
			priority = "Urgent"
		}
		tasks = append(tasks, models.MaintenanceTask{
			MachineID:         h.MachineID,
			Type:              h.Type,
			LocationID:        h.LocationID,
			RiskScore:         h.RiskScore,
			Priority:          priority,
			RecommendedAction: h.RecommendedAction,
		})
	}
	slices.SortStableFunc(tasks, func(a, b models.MaintenanceTask) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	})
	return tasks
}

// FaultRates returns the observed share of faulty readings per machine,
// highest first, limited to topN. Readings with an invalid flag are ignored.
func FaultRates(readings []models.SensorReading, topN int) []models.MachineFaultRate {
	type tally struct{ faults, total int }
	counts := make(map[string]*tally)
	var order []string
	for _, r := range readings {
		if r.FaultFlag != 0 && r.FaultFlag != 1 {
			continue
		}
		t, ok := counts[r.MachineID]
		if !ok {
			t = &tally{}
			counts[r.MachineID] = t
			order = append(order, r.MachineID)
		}
		t.total++
		t.faults += r.FaultFlag
	}

	out := make([]models.MachineFaultRate, 0, len(order))
	for _, id := range order {
		t := counts[id]
		out = append(out, models.MachineFaultRate{
			MachineID: id,
			FaultRate: float64(t.faults) / float64(t.total),
		})
	}
	slices.SortStableFunc(out, func(a, b models.MachineFaultRate) int {
		if c := cmp.Compare(b.FaultRate, a.FaultRate); c != 0 {
			return c
		}
		return cmp.Compare(a.MachineID, b.MachineID)
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
