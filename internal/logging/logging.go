// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Options selects the handler.
type Options struct {
	Level  slog.Leveler
	Format string
	// Out defaults to stderr.
	Out io.Writer
}

// New returns a logger writing to opts.Out. Text output goes through tint and
// is colourised only when the output is a terminal; "json" selects the
// standard JSON handler.
func New(opts Options) *slog.Logger {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	out := opts.Out
	color := false
	if out == nil {
		out = colorable.NewColorable(os.Stderr)
		color = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	}

	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	}

	// Skip timestamps under systemd; the journal adds its own.
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return dropEmpty(a)
		},
	}))
}

// dropEmpty removes attributes carrying zero values so request logs stay
// short.
func dropEmpty(a slog.Attr) slog.Attr {
	skip := false
	switch v := a.Value.Any().(type) {
	case string:
		skip = v == ""
	case int64:
		skip = v == 0 && a.Key != "status"
	case time.Duration:
		skip = v == 0
	case time.Time:
		skip = v.IsZero()
	case nil:
		skip = true
	}
	if skip {
		return slog.Attr{}
	}
	return a
}
