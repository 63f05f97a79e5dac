package deploy

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testDeployer(t *testing.T, cfg *config.Config, withSecurity bool) *Deployer {
	t.Helper()
	logger := testLogger()
	exec := pipeline.NewExecutor(cmdexec.New(logger), pipeline.NewPrinter(io.Discard, false), logger)
	return New(cfg, exec, logger, withSecurity)
}

// stubTool installs a fake executable ahead of the real one on PATH and
// records each invocation's arguments to a log file.
func stubTool(t *testing.T, name string, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, name+".log")
	script := "#!/bin/sh\necho \"$@\" >> " + logPath + "\nexit " + itoa(exitCode) + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return logPath
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	return string(rune('0' + n))
}

func invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSteps_OrderAndPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Deploy.MonitorInstall = []string{"pip install -r scripts/requirements.txt"}
	cfg.Deploy.Security.PolicyManifest = "k8s/policy.yaml"

	steps := testDeployer(t, cfg, true).Steps()

	wantNames := []string{
		"Validate prerequisites",
		"Build image",
		"Verify image",
		"Smoke-test container",
		"Check cluster connectivity",
		"Apply manifests",
		"Wait for rollout",
		"Verify deployment",
		"Set up monitoring",
		"Install security runtime",
		"Apply security policy",
		"Deployment summary",
	}
	if len(steps) != len(wantNames) {
		t.Fatalf("got %d steps, want %d", len(steps), len(wantNames))
	}
	for i, want := range wantNames {
		if steps[i].Name != want {
			t.Errorf("step %d = %q, want %q", i, steps[i].Name, want)
		}
	}

	// The first eight rollout steps are required, the rest degrade.
	for i, s := range steps {
		wantRequired := i < 8
		if s.Required != wantRequired {
			t.Errorf("step %q required = %v, want %v", s.Name, s.Required, wantRequired)
		}
	}
}

func TestSteps_SecuritySkippedByDefault(t *testing.T) {
	steps := testDeployer(t, config.Default(), false).Steps()
	for _, s := range steps {
		if s.Name == "Install security runtime" {
			t.Error("security install present without the flag")
		}
	}
}

func TestValidatePrerequisites_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Deploy.ProjectDir = t.TempDir()
	cfg.Deploy.RequiredFiles = []string{"Dockerfile", "app.sh"}

	out := testDeployer(t, cfg, false).validatePrerequisites(context.Background())
	if out.OK() {
		t.Fatal("expected failure for missing files")
	}
	if !strings.Contains(out.Diagnostic, "Dockerfile") || !strings.Contains(out.Diagnostic, "app.sh") {
		t.Errorf("diagnostic %q does not list missing files", out.Diagnostic)
	}
}

func TestValidatePrerequisites_ValidatorFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Deploy.ProjectDir = dir
	cfg.Deploy.RequiredFiles = []string{"Dockerfile"}
	// First candidate fails, second succeeds.
	cfg.Deploy.Validators = []string{"false", "true"}

	out := testDeployer(t, cfg, false).validatePrerequisites(context.Background())
	if !out.OK() {
		t.Fatalf("expected fallback success, got %q (%s)", out.Kind, out.Diagnostic)
	}
}

func TestApplyManifests_InOrder(t *testing.T) {
	logPath := stubTool(t, "kubectl", 0)

	cfg := config.Default()
	cfg.Deploy.ManifestDir = "k8s"
	cfg.Deploy.Manifests = []string{"deployment.yaml", "service.yaml"}

	out := testDeployer(t, cfg, false).applyManifests(context.Background())
	if !out.OK() {
		t.Fatalf("expected success, got %q", out.Kind)
	}

	got := invocations(t, logPath)
	want := []string{
		"apply -f k8s/deployment.yaml",
		"apply -f k8s/service.yaml",
	}
	if len(got) != len(want) {
		t.Fatalf("invocations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestApplyManifests_StopsOnFailure(t *testing.T) {
	logPath := stubTool(t, "kubectl", 1)

	cfg := config.Default()
	cfg.Deploy.Manifests = []string{"a.yaml", "b.yaml"}

	out := testDeployer(t, cfg, false).applyManifests(context.Background())
	if out.OK() {
		t.Fatal("expected failure")
	}
	if got := invocations(t, logPath); len(got) != 1 {
		t.Errorf("applied %d manifests after failure, want 1", len(got))
	}
}

func TestSmokeTest_CleansUpContainer(t *testing.T) {
	logPath := stubTool(t, "docker", 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	d := testDeployer(t, cfg, false)
	d.smokeURL = srv.URL
	d.readyWait = 2 * time.Second

	out := d.smokeTest(context.Background())
	if !out.OK() {
		t.Fatalf("expected success, got %q (%s)", out.Kind, out.Diagnostic)
	}

	got := invocations(t, logPath)
	if len(got) != 3 {
		t.Fatalf("docker invocations = %v, want run/stop/rm", got)
	}
	if !strings.HasPrefix(got[0], "run -d --name wisecow-smoke") {
		t.Errorf("first invocation = %q", got[0])
	}
	if !strings.HasPrefix(got[1], "stop ") || !strings.HasPrefix(got[2], "rm ") {
		t.Errorf("cleanup invocations = %v", got[1:])
	}
}

func TestSmokeTest_CleansUpOnProbeFailure(t *testing.T) {
	logPath := stubTool(t, "docker", 0)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // probe target is unreachable

	cfg := config.Default()
	d := testDeployer(t, cfg, false)
	d.smokeURL = url
	d.readyWait = time.Second

	out := d.smokeTest(context.Background())
	if out.OK() {
		t.Fatal("expected probe failure")
	}
	if out.Kind != cmdexec.KindTimeout {
		t.Errorf("kind = %q, want %q", out.Kind, cmdexec.KindTimeout)
	}

	got := invocations(t, logPath)
	if len(got) != 3 {
		t.Errorf("container not cleaned up on failure path: %v", got)
	}
}

func TestWaitReady_SlowProbesBoundedByMaxWait(t *testing.T) {
	// Each probe hangs until the client gives up; the poll must still
	// end at max wait, not after a full attempt budget of slow probes.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	d := testDeployer(t, config.Default(), false)

	start := time.Now()
	out := d.waitReady(context.Background(), srv.URL, time.Second)
	elapsed := time.Since(start)

	if out.OK() {
		t.Fatal("expected timeout outcome")
	}
	if out.Kind != cmdexec.KindTimeout {
		t.Errorf("kind = %q, want %q", out.Kind, cmdexec.KindTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("gave up after %s, want about the 1s max wait", elapsed)
	}
}

func TestWaitReady_GivesUpAtMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := testDeployer(t, config.Default(), false)

	start := time.Now()
	out := d.waitReady(context.Background(), url, time.Second)
	if out.OK() {
		t.Fatal("expected timeout outcome")
	}
	if out.Kind != cmdexec.KindTimeout {
		t.Errorf("kind = %q, want %q", out.Kind, cmdexec.KindTimeout)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("gave up after %s, want bounded by max wait", elapsed)
	}
}
