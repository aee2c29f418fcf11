package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReportCreatesFileInTemp(t *testing.T) {
	path, err := writeReport("", "boom", []byte("stacktrace"), nil)
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "Card Composer Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestWriteReportInDirWithDetails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	path, err := writeReport(dir, "kaboom", []byte("stack"), map[string]string{"template": "template3", "command": "render"})
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected crash report under %s, got %s", dir, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	ci, ti := strings.Index(s, "command: render"), strings.Index(s, "template: template3")
	if ci < 0 || ti < 0 || ci > ti {
		t.Fatalf("details missing or unsorted: %s", s)
	}
}

func TestSafeDetailsSurvivesPanic(t *testing.T) {
	m := safeDetails(func() map[string]string { panic("nope") })
	if m["details_error"] != "nope" {
		t.Fatalf("got %v", m)
	}
}
