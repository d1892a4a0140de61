package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
)

// NewLogger builds the process logger from cfg and installs it as the slog
// default. Verbose mode logs at debug level.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	return sharedobs.NewLogger(level, cfg.LogFormat)
}
