// Package logging builds the per-run logger. Each batch run gets its own
// zerolog.Logger writing to the console and to a log file in the output
// folder; nothing here touches zerolog's global logger, so the handle's
// lifecycle is scoped to the run that created it.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/fpang/hedra-batch/internal/config"
)

// New creates a logger for one batch run. Events go to a ConsoleWriter on
// stderr and, as JSON, to the configured log file inside outputFolder. A log
// file left over from a previous run is gzip-archived first. The returned
// close function flushes and closes the log file.
func New(outputFolder string, cfg config.Logging, runID string) (zerolog.Logger, func() error, error) {
	level := resolveLevel(cfg.Level)

	logPath := filepath.Join(outputFolder, cfg.File)
	if err := archivePrevious(logPath); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("archive previous log: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", logPath, err)
	}

	multi := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stderr},
		file,
	)

	logger := zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return logger, file.Close, nil
}

// resolveLevel maps the configured level name to a zerolog level.
// HEDRA_LOG_LEVEL wins over the config file; unknown names fall back to info.
func resolveLevel(configured string) zerolog.Level {
	name := configured
	if env := os.Getenv(config.EnvLogLevel); env != "" {
		name = env
	}

	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
