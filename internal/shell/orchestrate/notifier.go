package orchestrate

import "log/slog"

// =============================================================================
// Notifier
// =============================================================================

// Notifier receives the user-facing toast/banner messages the orchestrator
// emits: one message per class of failure (connection, readiness, validation,
// deployment) plus the aggregate success notification. Presentation
// collaborators provide their own implementation.
type Notifier interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// LogNotifier is the default Notifier; it writes notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Success(message string) { n.logger.Info("notification", "kind", "success", "message", message) }
func (n *LogNotifier) Warning(message string) { n.logger.Warn("notification", "kind", "warning", "message", message) }
func (n *LogNotifier) Error(message string)   { n.logger.Error("notification", "kind", "error", "message", message) }
