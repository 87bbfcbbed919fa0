package logger

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// Messages logged by the playback engine. Report keys off these.
const (
	MsgDispatch  = "command dispatched"
	MsgRewind    = "rewind"
	MsgSkip      = "skip"
	MsgQuit      = "quit"
	MsgDirective = "directive"
)

// Attribute keys shared by the playback engine and Report.
const (
	KeyEngine    = "engine"
	KeyCommand   = "command"
	KeyRC        = "rc"
	KeyDirective = "directive"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn or error. Unknown values mean warn.
	Level string
	// Format selects "json" or "text" output on Console.
	Format string
	// Console receives human oriented logs, usually stderr. Nil disables it.
	Console io.Writer
	// File receives every record at debug level as JSON lines. Nil disables it.
	File io.Writer
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New creates a logger writing to every configured destination.
func New(opts Options) *slog.Logger {
	var handlers []slog.Handler

	if opts.Console != nil {
		handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
		if opts.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(opts.Console, handlerOpts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(opts.Console, handlerOpts))
		}
	}

	if opts.File != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.File, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	if len(handlers) == 0 {
		return Discard()
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
