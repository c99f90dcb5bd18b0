package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the level and output format.
type Options struct {
	Level  string
	Pretty bool
}

// New builds the process logger. Pretty selects the human-readable console writer.
func New(opts Options) zerolog.Logger {
	return NewWithWriter(opts, os.Stderr)
}

func NewWithWriter(opts Options, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := w
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "quiz-room-service").Logger()
}
