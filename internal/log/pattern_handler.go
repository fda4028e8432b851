package log

import (
	"context"
	"io"
	"log/slog"
	"maps"

	"github.com/sirupsen/logrus"
)

// patternHandler is a slog.Handler that renders records through logrus
// with the pattern formatter.
type patternHandler struct {
	logger *logrus.Logger
	level  slog.Level
	fields logrus.Fields
	prefix string
}

func newPatternHandler(w io.Writer, level slog.Level, pattern, timeLayout string) *patternHandler {
	if pattern == "" {
		pattern = defaultPattern
	}
	if timeLayout == "" {
		timeLayout = defaultTimeLayout
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})
	// Level filtering happens in Enabled.
	l.SetLevel(logrus.TraceLevel)

	return &patternHandler{logger: l, level: level, fields: logrus.Fields{}}
}

func (h *patternHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *patternHandler) Handle(_ context.Context, r slog.Record) error {
	fields := maps.Clone(h.fields)
	r.Attrs(func(a slog.Attr) bool {
		addField(fields, h.prefix, a)
		return true
	})
	h.logger.WithFields(fields).WithTime(r.Time).Log(toLogrusLevel(r.Level), r.Message)
	return nil
}

func (h *patternHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = maps.Clone(h.fields)
	for _, a := range attrs {
		addField(clone.fields, h.prefix, a)
	}
	return &clone
}

func (h *patternHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func addField(fields logrus.Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			addField(fields, groupPrefix, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	fields[prefix+a.Key] = a.Value.Any()
}

func toLogrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
