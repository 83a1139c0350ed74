package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// levelRouter is a zerolog.LevelWriter that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout io.Writer
	stderr io.Writer
}

func (lr levelRouter) Write(p []byte) (int, error) {
	return lr.stdout.Write(p)
}

func (lr levelRouter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= zerolog.ErrorLevel && level != zerolog.NoLevel {
		return lr.stderr.Write(p)
	}
	return lr.stdout.Write(p)
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file
// as JSON. Returns a cleanup function that closes the log file (if opened).
func setupLogger(level, format, logPath string, stdout, stderr io.Writer) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("parsing log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, "console") {
		stdout = zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.DateTime}
		stderr = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.DateTime}
	}

	var (
		w       zerolog.LevelWriter = levelRouter{stdout: stdout, stderr: stderr}
		cleanup func()
	)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		w = zerolog.MultiLevelWriter(w, f)
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "tailore").Logger()
	return logger, cleanup, nil
}
