package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ucsync/ucsync/internal/config"
)

// Setup initializes the logger. Logs always go to stderr, since stdout
// carries the generated SQL. A non-empty directory adds a daily log file.
func Setup(level, directory string) (*slog.Logger, error) {
	var writer io.Writer = os.Stderr

	if directory != "" {
		directory = config.ExpandHome(directory)
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}

		filename := fmt.Sprintf("ucsync-%s.log", time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(directory, filename), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(os.Stderr, file)
	}

	return New(writer, level), nil
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
