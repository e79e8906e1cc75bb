// Package cycle maps menstrual cycle days onto phases of a reference
// 28-day cycle.
package cycle

import "fmt"

// Phase is one of the four menstrual cycle phases.
type Phase string

const (
	PhaseMenstrual  Phase = "Menstrual"
	PhaseFollicular Phase = "Follicular"
	PhaseOvulatory  Phase = "Ovulatory"
	PhaseLuteal     Phase = "Luteal"
)

// CycleLength is the reference cycle length the day ranges below assume.
const CycleLength = 28

type dayRange struct {
	phase Phase
	first int
	last  int
}

var phaseTable = []dayRange{
	{PhaseMenstrual, 1, 5},
	{PhaseFollicular, 6, 13},
	{PhaseOvulatory, 14, 17},
	{PhaseLuteal, 18, 28},
}

// Classify returns the phase for a cycle day along with the confidence the
// heuristic assigns it (always 1.0 for an in-range day). Days outside 1..28
// have no defined phase; wraparound is deliberately not assumed.
func Classify(day int) (Phase, float64, error) {
	for _, r := range phaseTable {
		if day >= r.first && day <= r.last {
			return r.phase, 1.0, nil
		}
	}
	return "", 0, fmt.Errorf("cycle day %d outside reference cycle 1..%d", day, CycleLength)
}

// Confidence scores how well a day fits a phase's expected range: 1.0 in
// range, 0.7 within two days of the range boundary, 0.3 otherwise. Unknown
// phases score 0.
func Confidence(phase Phase, day int) float64 {
	for _, r := range phaseTable {
		if r.phase != phase {
			continue
		}
		if day >= r.first && day <= r.last {
			return 1.0
		}
		if abs(day-r.first) <= 2 || abs(day-r.last) <= 2 {
			return 0.7
		}
		return 0.3
	}
	return 0
}

// Color returns the fixed display color for a phase. Unrecognized phases map
// to transparent white.
func Color(phase Phase) string {
	switch phase {
	case PhaseMenstrual:
		return "#e63946"
	case PhaseFollicular:
		return "#f4a261"
	case PhaseOvulatory:
		return "#2a9d8f"
	case PhaseLuteal:
		return "#7b68ee"
	default:
		return "#ffffff00"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
