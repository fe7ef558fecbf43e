// Package logging builds the process logger and provides request ID
// propagation for the control API.
package logging

import (
	"go.uber.org/zap"
)

// NewLogger constructs the process logger. Verbose switches to the
// development config with debug level enabled.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
