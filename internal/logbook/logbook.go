// internal/logbook/logbook.go
//
// The logbook persists console activity to a session log file so failures
// can be inspected after the TUI closes. Entries go through zerolog for
// leveled, timestamped output; Tail feeds the TUI's log panel.

package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const logFileName = "neuroscan.log"

// Logbook writes leveled entries to a single append-only file.
type Logbook struct {
	path   string
	file   *os.File
	logger zerolog.Logger
	mu     sync.Mutex
}

// New creates (or reuses) the log file under logsDir at the given level.
func New(logsDir, level string) (*Logbook, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure log dir: %w", err)
	}
	path := filepath.Join(logsDir, logFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logbook: open log file: %w", err)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: file, NoColor: true}).
		Level(parseLevel(level)).
		With().Timestamp().Logger()
	return &Logbook{path: path, file: file, logger: logger}, nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
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

// Logger returns the underlying zerolog logger for packages that log
// structured fields directly.
func (l *Logbook) Logger() zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return l.logger
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close releases the file handle.
func (l *Logbook) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info().Msgf(format, args...)
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn().Msgf(format, args...)
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Error().Msgf(format, args...)
}

// Tail returns up to maxLines of the most recent log entries.
func (l *Logbook) Tail(maxLines int) []string {
	if l == nil || maxLines <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}
