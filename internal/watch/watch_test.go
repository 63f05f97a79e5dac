package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/capstan/capstan/internal/cmdexec"
)

func TestIsManifest(t *testing.T) {
	cases := map[string]bool{
		"k8s/deployment.yaml": true,
		"k8s/service.yml":     true,
		"k8s/notes.txt":       false,
		"k8s/deployment.json": false,
	}
	for path, want := range cases {
		if got := IsManifest(path); got != want {
			t.Errorf("IsManifest(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRun_AppliesChangedManifest(t *testing.T) {
	toolDir := t.TempDir()
	logPath := filepath.Join(toolDir, "kubectl.log")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\nexit 0\n"
	if err := os.WriteFile(filepath.Join(toolDir, "kubectl"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", toolDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(dir, cmdexec.New(logger), 10*time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Give the watcher a moment to register, then change a manifest.
	time.Sleep(200 * time.Millisecond)
	manifest := filepath.Join(dir, "deployment.yaml")
	if err := os.WriteFile(manifest, []byte("kind: Deployment\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var applied []string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(logPath); err == nil && len(data) > 0 {
			applied = strings.Split(strings.TrimSpace(string(data)), "\n")
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}

	if len(applied) != 1 {
		t.Fatalf("applied = %v, want exactly the yaml manifest once", applied)
	}
	if applied[0] != "apply -f "+manifest {
		t.Errorf("invocation = %q, want apply of %s", applied[0], manifest)
	}
}
