// Package format renders simulation quantities with an SI unit prefix,
// for cmd/spice's tabular stdout output.
//
// Adapted from the teacher's pkg/util/formatter.go: FormatValueFactor is
// kept verbatim (it has no AC dependency); FormatFrequency,
// FormatMagnitudePhase, FormatMagnitude, and FormatPhase are dropped since
// they exist solely to print the AC sweep table, and AC small-signal
// analysis is an explicit spec Non-goal (see DESIGN.md).
package format

import (
	"fmt"
	"math"
)

// ValueFactor renders value with the nearest milli/micro/nano/pico prefix,
// e.g. ValueFactor(0.0063, "V") -> "6.300 mV".
func ValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}
