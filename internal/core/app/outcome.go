package app

import "fmt"

// =============================================================================
// Deployment Outcome
// =============================================================================

// HostFailure records one host's deploy failure.
type HostFailure struct {
	HostID   string
	HostName string
	Message  string
}

// Outcome is the aggregate result of one deployment attempt. It is computed
// once after every per-host deploy call has resolved and is read-only
// afterwards.
type Outcome struct {
	OverallSuccess bool
	// FirstInstallationID and FirstHostID identify the first host whose
	// deploy call succeeded with an installation id, in selection order.
	// Used as the attempt's canonical result for later cleanup.
	FirstInstallationID string
	FirstHostID         string
	Failures            []HostFailure
}

// HeadlineError returns the attempt-level error message for an all-failed
// outcome. With exactly one attempted host the single failure's message is
// surfaced verbatim; with more the per-host detail stays in the host records
// and the headline is the aggregate form. Returns "" when the attempt
// succeeded on at least one host.
func (o Outcome) HeadlineError(attempted int) string {
	if o.OverallSuccess || len(o.Failures) == 0 {
		return ""
	}
	if attempted == 1 && len(o.Failures) == 1 {
		return o.Failures[0].Message
	}
	return fmt.Sprintf("deployment failed on all %d hosts, check the per-host status for details", attempted)
}
