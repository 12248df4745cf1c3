package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcelsud/webhook-sender/config"
	"github.com/rs/zerolog"
)

// New builds a logger from the logging config. w overrides the configured
// output when non-nil. The returned closer releases a log file, if any.
func New(cfg config.LoggingConfig, w io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var closer io.Closer = nopCloser{}
	if w == nil {
		w = os.Stdout
		if cfg.Output == "file" && cfg.FilePath != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
			}
			file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
			if err != nil {
				return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
			}
			w, closer = file, file
		}
	}

	if cfg.Format == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
