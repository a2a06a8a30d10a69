// Package logging builds the app's zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options mirror config.LogConfig.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
	File   string // empty: stderr
}

// New returns a production (json) or development (console) logger
// writing to opt.File, or stderr when it is empty.
func New(opt Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opt.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", opt.Level, err)
	}

	var cfg zap.Config
	if opt.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	out := "stderr"
	if opt.File != "" {
		out = opt.File
	}
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{out}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
