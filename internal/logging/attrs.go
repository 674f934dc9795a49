package logging

import (
	"log/slog"
)

// Field keys shared by structured log calls across packages.
const (
	FieldComponent    = "component"
	FieldFeed         = "feed"
	FieldSubscription = "sub"
	FieldRunID        = "run_id"
	FieldURL          = "url"
	FieldEpisode      = "episode"
)

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Error wraps err under the conventional "error" key; nil renders as "<nil>".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags logger with the component field the console handler
// folds into the line prefix. A nil logger falls back to the nop logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
