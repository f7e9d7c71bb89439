package app

import "math"

// =============================================================================
// Progress Mapping
// =============================================================================

// Phase weights for the overall 0-100 progress scale. The remote lifecycle has
// two observable stages (pulling, creating) before steady-state, so each gets
// roughly a third of the scale. The split is an approximation, not derived
// from measured phase durations; treat these as tunable.
var (
	PullingWeight  = 0.33
	CreatingBase   = 33
	CreatingWeight = 0.33
)

// Progress maps a phase plus the backend-reported sub-progress (0-100) to a
// single 0-100 value. On error the progress freezes at the pulling-scale
// value rather than resetting to zero. Unknown phases map to 0.
func Progress(phase InstallPhase, sub int) int {
	sub = clampSub(sub)

	switch phase {
	case PhasePulling:
		return int(math.Round(float64(sub) * PullingWeight))
	case PhaseCreating:
		return CreatingBase + int(math.Round(float64(sub)*CreatingWeight))
	case PhaseRunning:
		return 100
	case PhaseError:
		// Freeze at the last pulling-scale value, do not reset.
		return int(math.Round(float64(sub) * PullingWeight))
	default:
		return 0
	}
}

func clampSub(sub int) int {
	if sub < 0 {
		return 0
	}
	if sub > 100 {
		return 100
	}
	return sub
}
