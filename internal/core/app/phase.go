// Package app contains the core deployment types and progress logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package app

// =============================================================================
// Installation Phase
// =============================================================================

// InstallPhase represents the remote-side lifecycle phase of an installation.
type InstallPhase string

const (
	PhasePending  InstallPhase = "pending"
	PhasePulling  InstallPhase = "pulling"
	PhaseCreating InstallPhase = "creating"
	PhaseRunning  InstallPhase = "running"
	PhaseStopped  InstallPhase = "stopped"
	PhaseError    InstallPhase = "error"
)

// IsValid checks if the phase is one of the known phases.
func (p InstallPhase) IsValid() bool {
	switch p {
	case PhasePending, PhasePulling, PhaseCreating, PhaseRunning, PhaseStopped, PhaseError:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further phase transitions are expected.
func (p InstallPhase) IsTerminal() bool {
	switch p {
	case PhaseRunning, PhaseStopped, PhaseError:
		return true
	default:
		return false
	}
}
