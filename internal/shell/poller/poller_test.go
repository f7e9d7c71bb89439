package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
)

// =============================================================================
// Mocks
// =============================================================================

// scriptStep is one scripted poll response: a status or an error.
type scriptStep struct {
	status controlplane.InstallationStatus
	err    error
}

// scriptedAPI replays a fixed sequence of responses. The final step repeats
// for any polls past the end of the script.
type scriptedAPI struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

func (s *scriptedAPI) GetInstallationStatus(_ context.Context, _ string) (controlplane.InstallationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	return step.status, step.err
}

func (s *scriptedAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// perInstallationAPI answers with a fixed status per installation id.
type perInstallationAPI struct {
	mu        sync.Mutex
	responses map[string]controlplane.InstallationStatus
	calls     int
}

func (s *perInstallationAPI) GetInstallationStatus(_ context.Context, id string) (controlplane.InstallationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.responses[id], nil
}

func (s *perInstallationAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func phase(p app.InstallPhase, progress int) scriptStep {
	return scriptStep{status: controlplane.InstallationStatus{
		ID:       "inst-1",
		Status:   p,
		Progress: progress,
	}}
}

// recorder collects callback invocations under a lock.
type recorder struct {
	mu        sync.Mutex
	updates   []controlplane.InstallationStatus
	changes   []app.InstallPhase
	completes int
	errors    []string
	expires   int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnUpdate: func(st controlplane.InstallationStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.updates = append(r.updates, st)
		},
		OnStatusChange: func(p app.InstallPhase) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.changes = append(r.changes, p)
		},
		OnComplete: func(controlplane.InstallationStatus) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
		},
		OnError: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
		OnExpire: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.expires++
		},
	}
}

func (r *recorder) snapshot() (changes []app.InstallPhase, completes int, errors []string, expires int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]app.InstallPhase{}, r.changes...), r.completes, append([]string{}, r.errors...), r.expires
}

func fastConfig() Config {
	return Config{
		Interval:       5 * time.Millisecond,
		MaxDuration:    time.Second,
		RequestTimeout: 100 * time.Millisecond,
	}
}

// =============================================================================
// Terminal Outcome Tests
// =============================================================================

func TestStatusPoller_CompletesOnRunning(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhasePulling, 50),
		phase(app.PhaseCreating, 50),
		phase(app.PhaseRunning, 0),
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	changes, completes, errors, expires := rec.snapshot()
	assert.Equal(t, []app.InstallPhase{app.PhasePulling, app.PhaseCreating, app.PhaseRunning}, changes)
	assert.Equal(t, 1, completes)
	assert.Empty(t, errors)
	assert.Zero(t, expires)
	assert.False(t, p.Active())
}

func TestStatusPoller_ErrorPhaseFiresOnError(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhasePulling, 20),
		{status: controlplane.InstallationStatus{
			ID:           "inst-1",
			Status:       app.PhaseError,
			ErrorMessage: "image pull failed",
		}},
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	_, completes, errors, _ := rec.snapshot()
	assert.Zero(t, completes)
	assert.Equal(t, []string{"image pull failed"}, errors)
}

func TestStatusPoller_ErrorPhaseDefaultMessage(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		{status: controlplane.InstallationStatus{ID: "inst-1", Status: app.PhaseError}},
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	_, _, errors, _ := rec.snapshot()
	assert.Equal(t, []string{"installation failed"}, errors)
}

func TestStatusPoller_StoppedPhaseFiresNeither(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhaseStopped, 0),
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	_, completes, errors, _ := rec.snapshot()
	assert.Zero(t, completes)
	assert.Empty(t, errors)
}

// =============================================================================
// Edge-Triggered Change Tests
// =============================================================================

func TestStatusPoller_StatusChangeIsEdgeTriggered(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhasePulling, 10),
		phase(app.PhasePulling, 40),
		phase(app.PhasePulling, 80),
		phase(app.PhaseRunning, 0),
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	changes, _, _, _ := rec.snapshot()
	assert.Equal(t, []app.InstallPhase{app.PhasePulling, app.PhaseRunning}, changes)

	rec.mu.Lock()
	updates := len(rec.updates)
	rec.mu.Unlock()
	assert.Equal(t, 4, updates)
}

// =============================================================================
// Transient Error Tests
// =============================================================================

func TestStatusPoller_TransientErrorsKeepPolling(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		{err: fmt.Errorf("connection refused")},
		{err: fmt.Errorf("connection refused")},
		phase(app.PhaseRunning, 0),
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")

	require.Eventually(t, func() bool {
		return p.LastError() != ""
	}, time.Second, time.Millisecond)

	p.Wait()

	_, completes, errors, _ := rec.snapshot()
	assert.Equal(t, 1, completes)
	assert.Empty(t, errors)
	assert.Empty(t, p.LastError())
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestStatusPoller_StopIsIdempotent(t *testing.T) {
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhasePulling, 10),
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")
	require.True(t, p.Active())

	p.Stop()
	p.Stop()
	p.Wait()

	assert.False(t, p.Active())
	_, completes, errors, expires := rec.snapshot()
	assert.Zero(t, completes)
	assert.Empty(t, errors)
	assert.Zero(t, expires)
}

// gatedAPI blocks inside the status call until released, so a test can land
// Stop while a request is in flight.
type gatedAPI struct {
	entered chan struct{}
	release chan struct{}
	status  controlplane.InstallationStatus
}

func (g *gatedAPI) GetInstallationStatus(context.Context, string) (controlplane.InstallationStatus, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.status, nil
}

func TestStatusPoller_StopDiscardsInFlightResponse(t *testing.T) {
	api := &gatedAPI{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		status:  controlplane.InstallationStatus{ID: "inst-1", Status: app.PhaseRunning},
	}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")

	<-api.entered
	p.Stop()
	close(api.release)
	p.Wait()

	_, completes, errors, expires := rec.snapshot()
	assert.Zero(t, completes)
	assert.Empty(t, errors)
	assert.Zero(t, expires)
	rec.mu.Lock()
	updates := len(rec.updates)
	rec.mu.Unlock()
	assert.Zero(t, updates)
}

func TestStatusPoller_StopBeforeStartIsSafe(t *testing.T) {
	p := New(&scriptedAPI{steps: []scriptStep{phase(app.PhasePulling, 0)}}, fastConfig(), Callbacks{}, nil)
	p.Stop()
	assert.False(t, p.Active())
}

func TestStatusPoller_RestartReplacesInstallation(t *testing.T) {
	// inst-1 never terminates; inst-2 is already running.
	api := &perInstallationAPI{responses: map[string]controlplane.InstallationStatus{
		"inst-1": {ID: "inst-1", Status: app.PhasePulling, Progress: 10},
		"inst-2": {ID: "inst-2", Status: app.PhaseRunning},
	}}
	rec := &recorder{}

	p := New(api, fastConfig(), rec.callbacks(), nil)
	p.Start("inst-1")

	require.Eventually(t, func() bool {
		return api.callCount() > 0
	}, time.Second, time.Millisecond)

	p.Start("inst-2")
	p.Wait()

	_, completes, _, _ := rec.snapshot()
	assert.Equal(t, 1, completes)
	assert.False(t, p.Active())
}

// =============================================================================
// Ceiling Tests
// =============================================================================

func TestStatusPoller_CeilingFiresOnExpire(t *testing.T) {
	// Never reaches a terminal phase.
	api := &scriptedAPI{steps: []scriptStep{
		phase(app.PhasePulling, 50),
	}}
	rec := &recorder{}

	cfg := fastConfig()
	cfg.MaxDuration = 50 * time.Millisecond

	p := New(api, cfg, rec.callbacks(), nil)
	p.Start("inst-1")
	p.Wait()

	_, completes, errors, expires := rec.snapshot()
	assert.Equal(t, 1, expires)
	assert.Zero(t, completes)
	assert.Empty(t, errors)
	assert.False(t, p.Active())
}

// =============================================================================
// Defaults Tests
// =============================================================================

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 5*time.Minute, cfg.MaxDuration)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)

	custom := Config{Interval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, custom.Interval)
	assert.Equal(t, 5*time.Minute, custom.MaxDuration)
}
