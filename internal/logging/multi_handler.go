package logging

import (
	"context"
	"log/slog"
)

// multiHandler forwards each record to every sink that accepts its level.
type multiHandler struct {
	sinks []slog.Handler
}

func newMultiHandler(sinks ...slog.Handler) slog.Handler {
	kept := make([]slog.Handler, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			kept = append(kept, sink)
		}
	}
	switch len(kept) {
	case 0:
		return slog.DiscardHandler
	case 1:
		return kept[0]
	}
	return &multiHandler{sinks: kept}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range h.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, sink := range h.sinks {
		if !sink.Enabled(ctx, record.Level) {
			continue
		}
		if err := sink.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &multiHandler{sinks: h.each(func(sink slog.Handler) slog.Handler { return sink.WithAttrs(attrs) })}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	return &multiHandler{sinks: h.each(func(sink slog.Handler) slog.Handler { return sink.WithGroup(name) })}
}

func (h *multiHandler) each(fn func(slog.Handler) slog.Handler) []slog.Handler {
	out := make([]slog.Handler, len(h.sinks))
	for i, sink := range h.sinks {
		out[i] = fn(sink)
	}
	return out
}
