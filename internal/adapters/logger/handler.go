package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/muesli/termenv"
	"go.trai.ch/splitup/internal/ui/output"
	"go.trai.ch/splitup/internal/ui/style"
)

// PrettyHandler is a slog.Handler that writes one colored line per record:
// the message followed by key=value pairs. Keys are qualified by the groups
// open when the attribute was added, joined with dots.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	prefix []string
	groups []string
}

// NewPrettyHandler creates a PrettyHandler writing to w, or stderr when w is nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &PrettyHandler{out: output.New(w), level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelStyle(level slog.Level) (marker string, color termenv.Color) {
	switch {
	case level >= slog.LevelError:
		return style.Cross + " ", termenv.RGBColor(string(style.Red))
	case level >= slog.LevelWarn:
		return style.Warning + " ", termenv.RGBColor(string(style.Yellow))
	case level >= slog.LevelInfo:
		return "", termenv.RGBColor(string(style.Slate))
	default:
		return style.Dot + " ", termenv.RGBColor(string(style.Iris))
	}
}

// Handle writes the record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	marker, color := levelStyle(r.Level)

	parts := slices.Clone(h.prefix)
	r.Attrs(func(attr slog.Attr) bool {
		parts = appendAttr(parts, h.groups, attr)
		return true
	})

	line := marker + r.Message
	if len(parts) > 0 {
		line += " " + strings.Join(parts, " ")
	}
	_, err := h.out.WriteString(h.out.String(line).Foreground(color).String() + "\n")
	return err
}

// WithAttrs renders attrs under the currently open groups.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.prefix = slices.Clip(h.prefix)
	for _, attr := range attrs {
		next.prefix = appendAttr(next.prefix, h.groups, attr)
	}
	return &next
}

// WithGroup opens a group for attributes added afterwards.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

// appendAttr renders attr as key=value, expanding group values. Empty
// attributes are dropped and inline groups keep the enclosing qualification.
func appendAttr(parts, groups []string, attr slog.Attr) []string {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return parts
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clip(groups), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			parts = appendAttr(parts, inner, a)
		}
		return parts
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(parts, key+"="+attr.Value.String())
}
