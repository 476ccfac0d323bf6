package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the log encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatText    Format = "text"
	FormatConsole Format = "console"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format Format
	// File, when set, sends output to a size-rotated file instead of Out.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Out        io.Writer
}

// New builds a Logger from opts. The returned closer releases the log file
// and is a no-op when logging to Out.
func New(opts Options) (Logger, io.Closer, error) {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	if opts.Out != nil {
		out = opts.Out
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		}
		out, closer = lj, lj
	}

	switch opts.Format {
	case FormatConsole:
		zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: opts.File != ""}).
			Level(lvl).With().Timestamp().Logger()
		return NewZerologLogger(zl), closer, nil
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel(lvl)}))), closer, nil
	case FormatJSON, "":
		return NewSlogLogger(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel(lvl)}))), closer, nil
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
}

func slogLevel(l zerolog.Level) slog.Level {
	switch l {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return slog.LevelDebug
	case zerolog.WarnLevel:
		return slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
