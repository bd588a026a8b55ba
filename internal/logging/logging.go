// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the log level and destination.
type Options struct {
	// Level is a zerolog level name (trace, debug, info, warn, error).
	Level string
	// File, when set, receives JSON log lines. Otherwise logs go to
	// stderr in console format.
	File string
}

// Setup installs the global logger. The returned closer is non-nil when
// a log file was opened.
func Setup(opts Options) (io.Closer, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", opts.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	var closer io.Closer
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		out = f
		closer = f
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}
