// Package logger builds the zap logger shared by the CLI and the backend.
package logger

import (
	"go.uber.org/zap"
)

// New returns a production zap logger at the given verbosity ("debug",
// "info", "warn", ...). An empty verbosity defaults to info.
func New(verbosity string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = level
	return config.Build()
}
