package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record:
//
//	15:04:05 WARN  workflow: [daily-times · page 2 · search "times"] load failed error="..." req=1a2b3c4d
//
// The publication, page and search fields form the bracketed subject; error
// and the correlation id trail the remaining fields.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	fields    []field
	prefix    string
}

type field struct {
	key   string
	value slog.Value
}

const shortRequestID = 8

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.fields = appendFields(slices.Clip(h.fields), h.prefix, attrs)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clip(h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})

	var line consoleLine
	for _, f := range fields {
		line.take(f)
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Format(time.TimeOnly))
	fmt.Fprintf(&buf, " %-5s ", levelLabel(record.Level))
	if line.component != "" {
		buf.WriteString(line.component)
		buf.WriteString(": ")
	}
	if subject := line.subject(); subject != "" {
		buf.WriteString("[" + subject + "] ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf.WriteString(msg)
	} else {
		buf.WriteString("(no message)")
	}
	if h.addSource && record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		fmt.Fprintf(&buf, " (%s:%d)", filepath.Base(frame.File), frame.Line)
	}
	for _, f := range line.rest {
		buf.WriteString(" " + f.key + "=" + quoted(valueText(f.value)))
	}
	if line.err != "" {
		buf.WriteString(" error=" + quoted(line.err))
	}
	if line.requestID != "" {
		buf.WriteString(" req=" + line.requestID)
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// consoleLine sorts a record's fields into the parts of a console line.
type consoleLine struct {
	component   string
	publication string
	page        string
	search      string
	err         string
	requestID   string
	rest        []field
}

func (l *consoleLine) take(f field) {
	switch f.key {
	case FieldComponent:
		l.component = valueText(f.value)
	case FieldPublication:
		l.publication = valueText(f.value)
	case FieldPage:
		l.page = valueText(f.value)
	case FieldSearch:
		l.search = valueText(f.value)
	case FieldError:
		l.err = valueText(f.value)
	case FieldCorrelationID:
		id := valueText(f.value)
		if len(id) > shortRequestID {
			id = id[:shortRequestID]
		}
		l.requestID = id
	default:
		l.rest = append(l.rest, f)
	}
}

func (l consoleLine) subject() string {
	var parts []string
	if l.publication != "" {
		parts = append(parts, l.publication)
	}
	if l.page != "" {
		parts = append(parts, "page "+l.page)
	}
	if l.search != "" {
		parts = append(parts, "search "+strconv.Quote(l.search))
	}
	return strings.Join(parts, " · ")
}

func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if attr.Equal(slog.Attr{}) {
			continue
		}
		if attr.Value.Kind() == slog.KindGroup {
			next := prefix
			if attr.Key != "" {
				next += attr.Key + "."
			}
			dst = appendFields(dst, next, attr.Value.Group())
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: attr.Value})
	}
	return dst
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoted(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
