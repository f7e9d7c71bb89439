package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/core/host"
)

func testHosts(names ...string) []*host.Host {
	hosts := make([]*host.Host, 0, len(names))
	for _, n := range names {
		hosts = append(hosts, &host.Host{
			ID:      "host_" + n,
			Name:    n,
			Status:  host.StatusConnected,
			Runtime: "docker",
		})
	}
	return hosts
}

func TestRecordTable_ResetCreatesPendingInOrder(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic", "lab", "nas"))

	snap := table.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "host_attic", snap[0].HostID)
	assert.Equal(t, "host_lab", snap[1].HostID)
	assert.Equal(t, "host_nas", snap[2].HostID)
	for _, rec := range snap {
		assert.Equal(t, app.PhasePending, rec.Phase)
		assert.Zero(t, rec.Progress)
		assert.Empty(t, rec.ErrorMessage)
	}
}

func TestRecordTable_ResetReplacesPriorRecords(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic"))
	table.Apply("host_attic", RecordUpdate{Phase: app.PhaseCreating, Progress: 50})

	table.Reset(testHosts("attic", "lab"))

	rec, ok := table.Get("host_attic")
	require.True(t, ok)
	assert.Equal(t, app.PhasePending, rec.Phase)
	assert.Zero(t, rec.Progress)
	assert.Equal(t, 2, table.Len())
}

func TestRecordTable_ApplyIgnoresUnknownHost(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic"))

	table.Apply("host_ghost", RecordUpdate{Phase: app.PhaseRunning, Progress: 100})

	_, ok := table.Get("host_ghost")
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestRecordTable_ProgressMonotoneWithinPhase(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic"))

	table.Apply("host_attic", RecordUpdate{Phase: app.PhasePulling, Progress: 20})
	table.Apply("host_attic", RecordUpdate{Phase: app.PhasePulling, Progress: 10})

	rec, _ := table.Get("host_attic")
	assert.Equal(t, 20, rec.Progress)

	// A phase transition resets the baseline.
	table.Apply("host_attic", RecordUpdate{Phase: app.PhaseCreating, Progress: 33})
	rec, _ = table.Get("host_attic")
	assert.Equal(t, app.PhaseCreating, rec.Phase)
	assert.Equal(t, 33, rec.Progress)
}

func TestRecordTable_ErrorFreezesProgress(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic"))

	table.Apply("host_attic", RecordUpdate{Phase: app.PhasePulling, Progress: 25})
	table.Apply("host_attic", RecordUpdate{Phase: app.PhaseError, ErrorMessage: "image pull failed"})

	rec, _ := table.Get("host_attic")
	assert.Equal(t, app.PhaseError, rec.Phase)
	assert.Equal(t, 25, rec.Progress)
	assert.Equal(t, "image pull failed", rec.ErrorMessage)
}

func TestRecordTable_InstallationIDSticks(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic"))

	table.Apply("host_attic", RecordUpdate{Phase: app.PhasePulling, InstallationID: "inst-1"})
	table.Apply("host_attic", RecordUpdate{Phase: app.PhaseCreating, Progress: 40})

	rec, _ := table.Get("host_attic")
	assert.Equal(t, "inst-1", rec.InstallationID)
}

func TestRecordTable_Clear(t *testing.T) {
	table := NewRecordTable()
	table.Reset(testHosts("attic", "lab"))
	table.Clear()

	assert.Zero(t, table.Len())
	assert.Empty(t, table.Snapshot())
}
