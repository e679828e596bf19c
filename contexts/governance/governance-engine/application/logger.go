package application

import "log/slog"

// ResolveLogger returns logger, or the process default tagged with the
// engine's component name when none was injected.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default().With("component", "governance-engine")
}
