package orchestrate

import (
	"context"
	"log/slog"

	"github.com/appdeck/appdeck/internal/core/app"
	"github.com/appdeck/appdeck/internal/core/host"
	"github.com/appdeck/appdeck/internal/shell/controlplane"
	"github.com/appdeck/appdeck/internal/shell/poller"
)

// =============================================================================
// Single Host Deployer
// =============================================================================

// DeployResult is the synchronous outcome of one host's install request.
type DeployResult struct {
	Success        bool
	InstallationID string
	Error          string
}

// hostDeployer issues the install request for one host, records the outcome,
// and attaches a status poller when the control plane returns an
// installation id.
type hostDeployer struct {
	api        ControlPlane
	records    *RecordTable
	pollConfig poller.Config
	logger     *slog.Logger

	// attachPoller registers a started poller with the orchestrator so it
	// can be stopped on retry or shutdown.
	attachPoller func(hostID string, p *poller.StatusPoller)
	// onHostError is invoked when polling reports a terminal error for the
	// host, after the record has been updated.
	onHostError func(hostID, message string)
}

// deploy issues one add_app call for the host. The host record is set to
// pulling/0 before the call - optimistic, the remote has not confirmed yet,
// but no earlier phase is observable.
func (d *hostDeployer) deploy(ctx context.Context, h *host.Host, appID string, payload app.ConfigPayload) DeployResult {
	d.records.Apply(h.ID, RecordUpdate{Phase: app.PhasePulling, Progress: 0})

	result, err := d.api.AddApp(ctx, controlplane.AddAppRequest{
		ServerID: h.ID,
		AppID:    appID,
		Config:   payload,
	})
	if err != nil {
		d.records.Apply(h.ID, RecordUpdate{Phase: app.PhaseError, ErrorMessage: err.Error()})
		d.logger.Warn("deploy request failed",
			"host_id", h.ID,
			"host_name", h.Name,
			"error", err,
		)
		return DeployResult{Success: false, Error: err.Error()}
	}

	if !result.Accepted {
		msg := result.Message
		if msg == "" {
			msg = "deployment rejected by control plane"
		}
		d.records.Apply(h.ID, RecordUpdate{Phase: app.PhaseError, ErrorMessage: msg})
		d.logger.Warn("deploy rejected",
			"host_id", h.ID,
			"host_name", h.Name,
			"error", msg,
		)
		return DeployResult{Success: false, Error: msg}
	}

	if result.InstallationID == "" {
		// Tolerated: the remote resolves out of band, nothing to poll.
		d.logger.Info("deploy accepted without installation id",
			"host_id", h.ID,
			"host_name", h.Name,
		)
		return DeployResult{Success: true}
	}

	d.startPolling(h.ID, result.InstallationID)

	d.logger.Info("deploy accepted",
		"host_id", h.ID,
		"host_name", h.Name,
		"installation_id", result.InstallationID,
	)
	return DeployResult{Success: true, InstallationID: result.InstallationID}
}

// startPolling seeds a status poller for the host's installation. The poller
// only requests record updates through the table's single entry point.
func (d *hostDeployer) startPolling(hostID, installationID string) {
	d.records.Apply(hostID, RecordUpdate{
		Phase:          app.PhasePulling,
		Progress:       0,
		InstallationID: installationID,
	})

	p := poller.New(d.api, d.pollConfig, poller.Callbacks{
		OnUpdate: func(st controlplane.InstallationStatus) {
			d.records.Apply(hostID, RecordUpdate{
				Phase:        st.Status,
				Progress:     app.Progress(st.Status, st.Progress),
				ErrorMessage: st.ErrorMessage,
			})
		},
		OnStatusChange: func(phase app.InstallPhase) {
			d.logger.Debug("installation phase changed",
				"host_id", hostID,
				"installation_id", installationID,
				"phase", phase,
			)
		},
		OnComplete: func(st controlplane.InstallationStatus) {
			d.logger.Info("installation running",
				"host_id", hostID,
				"installation_id", installationID,
				"container", st.ContainerName,
			)
		},
		OnError: func(message string) {
			if d.onHostError != nil {
				d.onHostError(hostID, message)
			}
		},
		OnExpire: func() {
			// Unresolved, not a failure: the record keeps its last
			// observed phase.
			d.logger.Warn("installation outcome unresolved, polling stopped",
				"host_id", hostID,
				"installation_id", installationID,
			)
		},
	}, d.logger)

	if d.attachPoller != nil {
		d.attachPoller(hostID, p)
	}
	p.Start(installationID)
}
