package dlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

const timeFormat = "[2006-01-02 15:04:05.000]"

// ansi color codes
const (
	gray   = 37
	cyan   = 36
	yellow = 93
	red    = 91
	green  = 32
	white  = 97
)

func paint(code int, v string) string {
	return "\033[" + strconv.Itoa(code) + "m" + v + "\033[0m"
}

func levelColor(level slog.Level) int {
	switch {
	case level <= slog.LevelDebug:
		return gray
	case level <= slog.LevelInfo:
		return cyan
	case level < slog.LevelError:
		return yellow
	}
	return red
}

// Handler renders one line per record: time, level, source, message, then the attrs as indented json.
// Attrs go through an inner JSON handler so groups and ReplaceAttr behave as in slog.
type Handler struct {
	inner    slog.Handler
	replace  func([]string, slog.Attr) slog.Attr
	buf      *bytes.Buffer
	mu       *sync.Mutex
	writer   io.Writer
	colorize bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) with(inner slog.Handler) *Handler {
	clone := *h
	clone.inner = inner
	return &clone
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(h.inner.WithAttrs(attrs))
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return h.with(h.inner.WithGroup(name))
}

// field applies ReplaceAttr to one of the built in keys; ok is false when it was dropped.
func (h *Handler) field(key string, value slog.Value) (string, bool) {
	attr := slog.Attr{Key: key, Value: value}
	if h.replace != nil {
		attr = h.replace(nil, attr)
	}
	if attr.Equal(slog.Attr{}) {
		return "", false
	}
	return attr.Value.String(), true
}

func (h *Handler) paint(code int, v string) string {
	if !h.colorize {
		return v
	}
	return paint(code, v)
}

func (h *Handler) attrs(ctx context.Context, r slog.Record) (map[string]any, error) {
	h.mu.Lock()
	defer func() {
		h.buf.Reset()
		h.mu.Unlock()
	}()
	if err := h.inner.Handle(ctx, r); err != nil {
		return nil, fmt.Errorf("inner handler: %w", err)
	}
	var attrs map[string]any
	if err := json.Unmarshal(h.buf.Bytes(), &attrs); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	return attrs, nil
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var parts []string
	if v, ok := h.field(slog.TimeKey, slog.StringValue(r.Time.Format(timeFormat))); ok {
		parts = append(parts, h.paint(gray, v))
	}
	if v, ok := h.field(slog.LevelKey, slog.AnyValue(r.Level)); ok {
		parts = append(parts, h.paint(levelColor(r.Level), v+":"))
	}

	attrs, err := h.attrs(ctx, r)
	if err != nil {
		return err
	}
	if source, ok := attrs[slog.SourceKey].(map[string]any); ok {
		if file, ok := source["file"].(string); ok {
			line, _ := source["line"].(float64)
			parts = append(parts, file+":"+strconv.Itoa(int(line)))
			delete(attrs, slog.SourceKey)
		}
	}
	if v, ok := h.field(slog.MessageKey, slog.StringValue(r.Message)); ok {
		parts = append(parts, h.paint(white, v))
	}
	if len(attrs) > 0 {
		indented, err := json.MarshalIndent(attrs, "", "  ")
		if err != nil {
			return fmt.Errorf("encode attrs: %w", err)
		}
		parts = append(parts, h.paint(green, string(indented)))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = io.WriteString(h.writer, strings.Join(parts, " ")+"\n")
	return err
}

// withoutBuiltins drops time, level and message from the inner JSON output, Handle prints them itself.
func withoutBuiltins(next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey:
			if len(groups) == 0 {
				return slog.Attr{}
			}
		}
		if next == nil {
			return a
		}
		return next(groups, a)
	}
}

func New(handlerOptions *slog.HandlerOptions, options ...Option) *Handler {
	if handlerOptions == nil {
		handlerOptions = &slog.HandlerOptions{}
	}
	buf := &bytes.Buffer{}
	handler := &Handler{
		buf: buf,
		inner: slog.NewJSONHandler(buf, &slog.HandlerOptions{
			Level:       handlerOptions.Level,
			AddSource:   handlerOptions.AddSource,
			ReplaceAttr: withoutBuiltins(handlerOptions.ReplaceAttr),
		}),
		replace: handlerOptions.ReplaceAttr,
		mu:      &sync.Mutex{},
		writer:  io.Discard,
	}
	for _, opt := range options {
		opt(handler)
	}
	return handler
}

func NewHandler(writer io.Writer, opts *slog.HandlerOptions) *Handler {
	return New(opts, WithDestinationWriter(writer), WithColor())
}

type Option func(h *Handler)

func WithDestinationWriter(writer io.Writer) Option {
	return func(h *Handler) {
		h.writer = writer
	}
}

func WithColor() Option {
	return func(h *Handler) {
		h.colorize = true
	}
}
