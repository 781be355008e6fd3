package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	raw := "allow_break: false\nprimary_timeout_ms: 250\nbreak_ticks_per_hardness: 0\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.AllowBreak {
		t.Fatalf("allow_break should be overridden")
	}
	if s.PrimaryTimeoutMs != 250 {
		t.Fatalf("primary_timeout_ms=%d", s.PrimaryTimeoutMs)
	}
	if s.FailureTimeoutMs != Defaults().FailureTimeoutMs {
		t.Fatalf("failure timeout should keep its default, got %d", s.FailureTimeoutMs)
	}
	if s.BreakTicksPerHardness != Defaults().BreakTicksPerHardness {
		t.Fatalf("normalize should restore break ticks, got %v", s.BreakTicksPerHardness)
	}
}

func TestLoadRejectsInvertedTimeouts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("primary_timeout_ms: 9000\nfailure_timeout_ms: 1000\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateBoundsDangerZones(t *testing.T) {
	s := Defaults()
	s.DangerAvoidanceRadius = 1000
	if err := s.Validate(); err == nil {
		t.Fatalf("danger_avoidance_radius 1000 accepted")
	}
	s = Defaults()
	s.DangerAvoidanceCoefficient = 0
	if err := s.Validate(); err == nil {
		t.Fatalf("danger_avoidance_coefficient 0 accepted")
	}
}
