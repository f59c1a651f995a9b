package logsink

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mogden/flux2imd/decode"
)

func TestNewCreatesLogFileBesideSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "disk.raw")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(src, 0)
	defer s.Close()
	s.Always("hello %s", "world")

	logPath := filepath.Join(dir, "disk.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected %s to exist: %v", logPath, err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Fatalf("log file missing expected message: %q", data)
	}
}

func TestDebugMaskGating(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "disk.raw")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(src, DebugSector)
	defer s.Close()
	s.Debug(DebugTrack, "should not appear")
	s.Debug(DebugSector, "should appear")
	s.Debug(0, "always appears regardless of mask")

	data, err := os.ReadFile(filepath.Join(dir, "disk.log"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "should not appear") {
		t.Fatal("a debug call whose bit isn't in the mask should be suppressed")
	}
	if !strings.Contains(out, "should appear") {
		t.Fatal("a debug call whose bit is in the mask should be emitted")
	}
	if !strings.Contains(out, "always appears") {
		t.Fatal("a zero mask means always emit")
	}
}

func TestSummaryReportsDefects(t *testing.T) {
	disk := decode.NewDisk()
	disk.LogCylHead(0, 0)
	disk.SetTrack(0, 0, &decode.Track{Status: decode.BadID, Sectors: []decode.Sector{{}}})
	disk.LogCylHead(1, 0)
	disk.SetTrack(1, 0, &decode.Track{Status: decode.FixedID, Sectors: []decode.Sector{{Status: decode.Good}}})

	var buf bytes.Buffer
	Summary(&buf, disk)
	out := buf.String()
	if !strings.Contains(out, "unresolved sector map") {
		t.Fatalf("expected a BadID line in summary:\n%s", out)
	}
	if !strings.Contains(out, "sector map reconstructed by interleave") {
		t.Fatalf("expected a FixedID line in summary:\n%s", out)
	}
	if !strings.Contains(out, "1/2 sectors good") {
		t.Fatalf("expected the good-sector tally to read 1/2:\n%s", out)
	}
}
