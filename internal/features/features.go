// Package features derives model-ready rows from raw shipment and sensor
// records. Rows whose reference key has no match, or whose values are
// malformed, are dropped and counted rather than repaired.
package features

import "fmt"

// DropReport counts rows removed while building features.
type DropReport struct {
	Unmatched int `json:"unmatched"`
	Invalid   int `json:"invalid"`
}

func (d DropReport) Total() int { return d.Unmatched + d.Invalid }

func (d DropReport) String() string {
	return fmt.Sprintf("unmatched=%d invalid=%d", d.Unmatched, d.Invalid)
}
