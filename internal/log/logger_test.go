/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// resetAfter restores an env-initialized logger once the test ends.
func resetAfter(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { Init(Options{Level: "error"}) })
}

func lastJSONLine(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var last string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines in %q", data)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", last, err)
	}
	return m
}

func TestFileSinkCarriesCardAttrs(t *testing.T) {
	resetAfter(t)
	fpath := filepath.Join(t.TempDir(), "card.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", File: fpath, Console: &console})

	ctx := ContextWith(context.Background(), slog.String("cmd", "render"))
	WithOperation(WithComponent("export"), "encode").InfoContext(ctx, "card exported", slog.String("file", "birthday-card.png"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, b)
	want := map[string]string{
		"app": "cardcomposer", "component": "export", "op": "encode",
		"cmd": "render", "file": "birthday-card.png", "msg": "card exported",
	}
	for k, v := range want {
		if m[k] != v {
			t.Fatalf("%s = %v, want %q (record %v)", k, m[k], v, m)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if !strings.Contains(console.String(), "[export] card exported") {
		t.Fatalf("console sink missed the record: %q", console.String())
	}
}

func TestConsoleLine(t *testing.T) {
	resetAfter(t)
	var buf bytes.Buffer
	Init(Options{Level: "info", Console: &buf})

	l := WithComponent("session").With(slog.String("template", "template2"))
	l.Debug("hidden")
	l.WithGroup("photo").Warn("decode failed", slog.Int("bytes", 12), slog.Float64("scale", 1.25), slog.String("err", "bad header"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record written at info level: %q", out)
	}
	for _, part := range []string{
		" WRN [session] decode failed",
		" template=template2",
		" photo.bytes=12",
		" photo.scale=1.25",
		` photo.err="bad header"`,
	} {
		if !strings.Contains(out, part) {
			t.Fatalf("missing %q in %q", part, out)
		}
	}
	if strings.Contains(out, "app=") || strings.Contains(out, "component=") {
		t.Fatalf("console line repeats static attrs: %q", out)
	}
}

func TestConsoleSource(t *testing.T) {
	resetAfter(t)
	var buf bytes.Buffer
	Init(Options{Console: &buf, AddSource: true})
	WithComponent("drag").Info("gesture begin")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("source missing: %q", buf.String())
	}
}

func TestContextAttrsAccumulate(t *testing.T) {
	resetAfter(t)
	var buf bytes.Buffer
	Init(Options{Format: "json", Console: &buf})

	ctx := ContextWith(context.Background(), slog.String("cmd", "compose"))
	ctx = ContextWith(ctx, slog.String("template", "template3"))
	WithComponent("session").InfoContext(ctx, "template ready")

	m := lastJSONLine(t, buf.Bytes())
	if m["cmd"] != "compose" || m["template"] != "template3" {
		t.Fatalf("context attrs missing: %v", m)
	}
	// the parent context is unchanged
	if got := contextAttrs(context.Background()); got != nil {
		t.Fatalf("background context has attrs %v", got)
	}
}

func TestFromEnvAndParseLevel(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "TRUE")
	t.Setenv(EnvFile, "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv = %+v", opts)
	}
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, " Warning ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
