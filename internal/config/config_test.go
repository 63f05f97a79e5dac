package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Setenv("CAPSTAN_IMAGE", "wisecow:v2")

	path := writeConfig(t, `
app:
  name: wisecow
  image: ${CAPSTAN_IMAGE}
monitor:
  cpu_threshold: 90
  interval: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// envsubst in the image field.
	if cfg.App.Image != "wisecow:v2" {
		t.Errorf("app.image = %q, want %q", cfg.App.Image, "wisecow:v2")
	}
	if cfg.Monitor.CPUThreshold != 90 {
		t.Errorf("cpu_threshold = %v, want 90", cfg.Monitor.CPUThreshold)
	}
	// Untouched fields keep their defaults.
	if cfg.Monitor.MemoryThreshold != 80 {
		t.Errorf("memory_threshold = %v, want default 80", cfg.Monitor.MemoryThreshold)
	}
	if cfg.Status.GuidanceThreshold != 0.8 {
		t.Errorf("guidance_threshold = %v, want default 0.8", cfg.Status.GuidanceThreshold)
	}
	if cfg.Deploy.ManifestDir != "k8s" {
		t.Errorf("manifest_dir = %q, want default %q", cfg.Deploy.ManifestDir, "k8s")
	}
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
monitor:
  cpu_threshold: 150
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for threshold > 100")
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
monitor:
  interval: soon
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unparseable interval")
	}
	if !strings.Contains(err.Error(), "monitor.interval") {
		t.Errorf("error %q does not name the offending field", err)
	}
}

func TestResolve_ExplicitMissingFile(t *testing.T) {
	if _, err := Resolve(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestResolve_FallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.App.Name == "" || cfg.Monitor.Interval == "" {
		t.Error("defaults should be fully populated")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
