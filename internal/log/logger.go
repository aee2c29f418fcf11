/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides the slog setup shared by the card packages.
//
// Every package logs through WithComponent. Records go to the console (a
// compact "15:04:05 INF [component] msg k=v" line, or JSON) and, when a file
// is configured, to a rotating JSON file. Attributes stored in a context with
// ContextWith, such as the CLI command, are added to every record logged
// with that context.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"cardcomposer/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by FromEnv.
const (
	EnvLevel  = "CARD_LOG_LEVEL"  // debug|info|warn|error
	EnvFormat = "CARD_LOG_FORMAT" // console|json
	EnvSource = "CARD_LOG_SOURCE" // true|false
	EnvFile   = "CARD_LOG_FILE"   // rotated JSON log file
)

// Options controls logger initialization. Zero values mean INFO level,
// console format, no source and stderr.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string    // optional rotated JSON log file
	Console   io.Writer // nil means os.Stderr
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the application logger, initializing it from the environment on
// first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog's default.
func Init(opts Options) {
	lvl := ParseLevel(opts.Level)
	out := opts.Console
	if out == nil {
		out = os.Stderr
	}

	var sinks []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	} else {
		sinks = append(sinks, &consoleHandler{w: out, level: lvl, source: opts.AddSource, mu: &sync.Mutex{}})
	}
	if strings.TrimSpace(opts.File) != "" {
		rot := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	logger := slog.New(&fanout{sinks: sinks}).With(
		slog.String("app", "cardcomposer"),
		slog.String("ver", version.String()),
	)

	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from the CARD_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     os.Getenv(EnvLevel),
		Format:    os.Getenv(EnvFormat),
		AddSource: strings.EqualFold(os.Getenv(EnvSource), "true"),
		File:      os.Getenv(EnvFile),
	}
}

// ParseLevel maps a level name to a slog level; unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type ctxAttrsKey struct{}

// ContextWith returns a context whose attributes are added to every record
// logged with it (InfoContext and friends).
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := contextAttrs(ctx)
	all := make([]slog.Attr, 0, len(prev)+len(attrs))
	all = append(all, prev...)
	all = append(all, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, all)
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

// fanout copies each record, plus the context attributes, to every sink.
type fanout struct{ sinks []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	if extra := contextAttrs(ctx); len(extra) > 0 {
		r = r.Clone()
		r.AddAttrs(extra...)
	}
	var firstErr error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanout{sinks: mapSinks(f.sinks, func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return &fanout{sinks: mapSinks(f.sinks, func(h slog.Handler) slog.Handler { return h.WithGroup(name) })}
}

func mapSinks(hs []slog.Handler, fn func(slog.Handler) slog.Handler) []slog.Handler {
	out := make([]slog.Handler, len(hs))
	for i, h := range hs {
		out[i] = fn(h)
	}
	return out
}

// consoleHandler writes one short line per record. The component attribute
// becomes a bracketed prefix; app and ver are left to the JSON sinks.
type consoleHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Level
	source    bool
	component string
	attrs     []slog.Attr
	prefix    string // open groups, "a.b."
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	if h.component != "" {
		b.WriteString(" [")
		b.WriteString(h.component)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	if h.source && r.PC != 0 {
		fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		b.WriteString(" src=")
		b.WriteString(fr.File)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(fr.Line))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		switch {
		case h.prefix == "" && a.Key == "component":
			c.component = a.Value.String()
		case h.prefix == "" && (a.Key == "app" || a.Key == "ver"):
		default:
			a.Key = h.prefix + a.Key
			c.attrs = append(c.attrs, a)
		}
	}
	return &c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(valueString(a.Value))
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Microsecond).String()
	case slog.KindString:
		if s := v.String(); strings.ContainsAny(s, " \t\n\"=") || s == "" {
			return strconv.Quote(s)
		}
		return v.String()
	default:
		return v.String()
	}
}
