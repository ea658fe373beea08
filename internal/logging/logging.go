// Package logging provides the process-wide structured logger.
package logging

import (
	"go.uber.org/zap"
)

// L is the shared sugared logger. It defaults to a no-op logger so that
// library code can log before Init runs (e.g. in tests).
var L = zap.NewNop().Sugar()

// Init builds the global logger. Debug mode uses the human-readable
// development config at debug level; otherwise a console-encoded
// production config at info level.
func Init(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "console"

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	L = logger.Sugar()
	return nil
}

// Sync flushes buffered log entries. Safe to call on the no-op logger.
func Sync() {
	_ = L.Sync()
}
