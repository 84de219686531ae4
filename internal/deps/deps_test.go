package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Errorf("present binary reported unavailable: %+v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Errorf("missing binary reported available: %+v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Errorf("unset command: %+v", results[2])
	}
}

func TestDefaultRequirements(t *testing.T) {
	reqs := Default("ffmpeg")
	if len(reqs) != 2 || reqs[0].Name != "FFmpeg" || reqs[0].Optional {
		t.Fatalf("unexpected defaults: %+v", reqs)
	}
}
