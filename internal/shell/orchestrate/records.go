package orchestrate

import (
	"sync"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/core/host"
)

// =============================================================================
// Host Records
// =============================================================================

// HostRecord is the live per-host view of one deployment attempt. One record
// exists per selected host, in selection order, created at fan-out start and
// replaced wholesale on retry.
type HostRecord struct {
	HostID         string           `json:"host_id"`
	HostName       string           `json:"host_name"`
	Phase          app.InstallPhase `json:"phase"`
	Progress       int              `json:"progress"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	InstallationID string           `json:"installation_id,omitempty"`
}

// RecordUpdate is one requested change to a host record. Pollers and the
// deployer emit updates; the table applies them in arrival order.
type RecordUpdate struct {
	Phase          app.InstallPhase
	Progress       int
	ErrorMessage   string
	InstallationID string
}

// =============================================================================
// Record Table
// =============================================================================

// RecordTable owns the host-record collection for the current attempt. All
// mutation goes through Apply/Reset so concurrent pollers never write to
// shared state directly.
type RecordTable struct {
	mu      sync.Mutex
	records []*HostRecord
	byID    map[string]*HostRecord
}

// NewRecordTable creates an empty record table.
func NewRecordTable() *RecordTable {
	return &RecordTable{byID: make(map[string]*HostRecord)}
}

// Reset replaces all records with fresh pending/0 entries for the given
// hosts, preserving selection order.
func (t *RecordTable) Reset(hosts []*host.Host) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = make([]*HostRecord, 0, len(hosts))
	t.byID = make(map[string]*HostRecord, len(hosts))
	for _, h := range hosts {
		rec := &HostRecord{
			HostID:   h.ID,
			HostName: h.Name,
			Phase:    app.PhasePending,
			Progress: 0,
		}
		t.records = append(t.records, rec)
		t.byID[h.ID] = rec
	}
}

// Clear removes all records.
func (t *RecordTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = nil
	t.byID = make(map[string]*HostRecord)
}

// Apply applies one update to a host's record. Unknown hosts are ignored.
// Progress never decreases within a phase; a transition to the error phase
// freezes progress at its last value instead of taking the reported one.
func (t *RecordTable) Apply(hostID string, u RecordUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byID[hostID]
	if !ok {
		return
	}

	if u.InstallationID != "" {
		rec.InstallationID = u.InstallationID
	}

	if u.Phase == app.PhaseError {
		rec.Phase = app.PhaseError
		rec.ErrorMessage = u.ErrorMessage
		// Progress freezes at its last value.
		return
	}

	if u.Phase == rec.Phase && u.Progress < rec.Progress {
		// Monotone within a phase: drop regressions.
		return
	}
	rec.Phase = u.Phase
	rec.Progress = u.Progress
	rec.ErrorMessage = u.ErrorMessage
}

// Get returns a copy of one host's record.
func (t *RecordTable) Get(hostID string) (HostRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byID[hostID]
	if !ok {
		return HostRecord{}, false
	}
	return *rec, true
}

// Snapshot returns copies of all records in selection order.
func (t *RecordTable) Snapshot() []HostRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]HostRecord, len(t.records))
	for i, rec := range t.records {
		out[i] = *rec
	}
	return out
}

// Len returns the number of records.
func (t *RecordTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
