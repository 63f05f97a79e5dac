// Package deploy assembles the application rollout pipeline: validate
// the environment, build and smoke-test the image, apply manifests,
// verify reachability, wire up monitoring, and optionally install a
// runtime-security component. Failed required steps abort the run with
// no rollback; partially applied cluster state is left for the
// operator.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/pipeline"
)

// Deployer builds and runs the rollout pipeline for one application.
type Deployer struct {
	cfg          *config.Config
	exec         *pipeline.StepExecutor
	logger       *slog.Logger
	withSecurity bool

	cmdTimeout time.Duration
	readyWait  time.Duration

	// Probe URLs, derived from config ports.
	smokeURL  string
	verifyURL string
}

// New creates a Deployer. withSecurity enables the optional
// runtime-security installation step.
func New(cfg *config.Config, exec *pipeline.StepExecutor, logger *slog.Logger, withSecurity bool) *Deployer {
	return &Deployer{
		cfg:          cfg,
		exec:         exec,
		logger:       logger,
		withSecurity: withSecurity,
		cmdTimeout:   config.MustDuration(cfg.Deploy.CommandTimeout),
		readyWait:    config.MustDuration(cfg.Deploy.ReadyWait),
		smokeURL:     fmt.Sprintf("http://localhost:%d", cfg.Deploy.SmokePort),
		verifyURL:    fmt.Sprintf("http://localhost:%d", cfg.Deploy.ForwardPort),
	}
}

// Steps returns the ordered rollout steps.
func (d *Deployer) Steps() []pipeline.Step {
	app := d.cfg.App
	dep := d.cfg.Deploy

	steps := []pipeline.Step{
		{Name: "Validate prerequisites", Required: true, Fn: d.validatePrerequisites},
		{Name: "Build image", Required: true, Commands: []cmdexec.Command{{
			Line:        fmt.Sprintf("docker build -t %s .", app.Image),
			Description: "Building " + app.Name + " image",
			Dir:         dep.ProjectDir,
			Timeout:     d.cmdTimeout,
		}}},
		{Name: "Verify image", Required: true, Commands: []cmdexec.Command{{
			Line:        "docker image inspect " + app.Image,
			Description: "Verifying image creation",
			Timeout:     d.cmdTimeout,
		}}},
		{Name: "Smoke-test container", Required: true, Fn: d.smokeTest},
		{Name: "Check cluster connectivity", Required: true, Commands: []cmdexec.Command{{
			Line:        "kubectl cluster-info",
			Description: "Checking cluster connectivity",
			Timeout:     d.cmdTimeout,
		}}},
		{Name: "Apply manifests", Required: true, Fn: d.applyManifests},
		{Name: "Wait for rollout", Required: true, Commands: []cmdexec.Command{{
			Line:        fmt.Sprintf("kubectl rollout status deployment/%s --timeout=%s", app.Name, dep.RolloutTimeout),
			Description: "Waiting for deployment to be ready",
			Timeout:     config.MustDuration(dep.RolloutTimeout) + time.Minute,
		}}},
		{Name: "Verify deployment", Required: true, Fn: d.verifyDeployment},
	}

	if len(dep.MonitorInstall) > 0 {
		steps = append(steps, pipeline.Step{
			Name:     "Set up monitoring",
			Required: false,
			Commands: d.installCandidates(dep.MonitorInstall),
			Hint:     "install the monitoring dependencies manually and re-run capstan monitor",
		})
	}

	if d.withSecurity {
		steps = append(steps, pipeline.Step{
			Name:     "Install security runtime",
			Required: false,
			Fn:       d.installSecurityRuntime,
			Hint:     "install the security runtime manually via helm, then apply the policy",
		})
	}

	if dep.Security.PolicyManifest != "" {
		steps = append(steps, pipeline.Step{
			Name:     "Apply security policy",
			Required: false,
			Fn:       d.applySecurityPolicy,
			Hint:     "re-run with --with-security to install the security runtime first",
		})
	}

	steps = append(steps, pipeline.Step{Name: "Deployment summary", Required: false, Fn: d.summarize})
	return steps
}

// Run executes the rollout and prints closing guidance on success.
func (d *Deployer) Run(ctx context.Context) pipeline.RunReport {
	p := pipeline.New(d.exec, d.logger, d.Steps())
	report := p.Run(ctx)

	if report.State == pipeline.StateCompleted {
		pr := d.exec.Printer()
		pr.Println("")
		pr.Println(d.cfg.App.Name + " has been deployed.")
		pr.Println(fmt.Sprintf("Local access: kubectl port-forward svc/%s %d:%d then open %s",
			d.cfg.App.Name, d.cfg.Deploy.ForwardPort, d.cfg.App.Port, d.verifyURL))
		pr.Println("App health:   capstan health " + d.verifyURL)
		pr.Println("System health: capstan monitor --continuous")
	}
	return report
}

func (d *Deployer) validatePrerequisites(ctx context.Context) cmdexec.Outcome {
	var missing []string
	for _, f := range d.cfg.Deploy.RequiredFiles {
		if _, err := os.Stat(filepath.Join(d.cfg.Deploy.ProjectDir, f)); err != nil {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return failure("missing required files: " + strings.Join(missing, ", "))
	}

	// Validator command variants are fallback candidates: the first
	// one that succeeds validates the environment.
	if len(d.cfg.Deploy.Validators) == 0 {
		return success("all required files present")
	}
	var last cmdexec.Outcome
	for _, line := range d.cfg.Deploy.Validators {
		last = d.exec.Runner().Run(ctx, cmdexec.Command{
			Line:        line,
			Description: "Running environment validation",
			Dir:         d.cfg.Deploy.ProjectDir,
			Timeout:     d.cmdTimeout,
		})
		if last.OK() {
			return last
		}
	}
	return last
}

func (d *Deployer) smokeTest(ctx context.Context) cmdexec.Outcome {
	runner := d.exec.Runner()
	app := d.cfg.App
	container := app.Name + "-smoke"

	start := runner.Run(ctx, cmdexec.Command{
		Line: fmt.Sprintf("docker run -d --name %s -p %d:%d %s",
			container, d.cfg.Deploy.SmokePort, app.Port, app.Image),
		Description: "Starting smoke-test container",
		Timeout:     d.cmdTimeout,
	})
	if !start.OK() {
		return start
	}

	// The container must come down on every exit path.
	defer func() {
		runner.Run(ctx, cmdexec.Command{Line: "docker stop " + container, Description: "Stopping smoke-test container", Timeout: d.cmdTimeout})
		runner.Run(ctx, cmdexec.Command{Line: "docker rm " + container, Description: "Removing smoke-test container", Timeout: d.cmdTimeout})
	}()

	return d.waitReady(ctx, d.smokeURL, d.readyWait)
}

func (d *Deployer) applyManifests(ctx context.Context) cmdexec.Outcome {
	runner := d.exec.Runner()
	pr := d.exec.Printer()

	for _, manifest := range d.cfg.Deploy.Manifests {
		path := filepath.Join(d.cfg.Deploy.ManifestDir, manifest)
		cmd := cmdexec.Command{
			Line:        "kubectl apply -f " + path,
			Description: "Applying " + path,
			Dir:         d.cfg.Deploy.ProjectDir,
			Timeout:     d.cmdTimeout,
		}
		pr.Attempt(cmd.Description, cmd.Line)
		out := runner.Run(ctx, cmd)
		if !out.OK() {
			pr.Failure(cmd.Description, out.Stderr)
			return out
		}
		pr.Success(cmd.Description, out.Stdout)
	}
	return success(fmt.Sprintf("applied %d manifests", len(d.cfg.Deploy.Manifests)))
}

func (d *Deployer) verifyDeployment(ctx context.Context) cmdexec.Outcome {
	runner := d.exec.Runner()
	app := d.cfg.App

	pods := runner.Run(ctx, cmdexec.Command{
		Line:        fmt.Sprintf("kubectl get pods -l app=%s", app.Name),
		Description: "Checking pod status",
		Timeout:     d.cmdTimeout,
	})
	if !pods.OK() {
		return pods
	}

	svc := runner.Run(ctx, cmdexec.Command{
		Line:        "kubectl get svc " + app.Name,
		Description: "Checking service status",
		Timeout:     d.cmdTimeout,
	})
	if !svc.OK() {
		return svc
	}

	forward, err := runner.Start(cmdexec.Command{
		Line: fmt.Sprintf("kubectl port-forward svc/%s %d:%d",
			app.Name, d.cfg.Deploy.ForwardPort, app.Port),
		Description: "Port-forwarding for verification",
	})
	if err != nil {
		return cmdexec.Outcome{Kind: cmdexec.KindException, Diagnostic: err.Error()}
	}
	defer func() {
		if err := forward.Stop(5 * time.Second); err != nil {
			d.logger.Warn("stopping port-forward", "error", err)
		}
	}()

	out := d.waitReady(ctx, d.verifyURL, d.readyWait)
	if !out.OK() && forward.Stderr() != "" {
		out.Stderr = forward.Stderr()
	}
	return out
}

func (d *Deployer) installSecurityRuntime(ctx context.Context) cmdexec.Outcome {
	runner := d.exec.Runner()
	sec := d.cfg.Deploy.Security

	if runner.Run(ctx, cmdexec.Command{
		Line:        "kubectl get ns " + sec.Namespace,
		Description: "Checking security runtime namespace",
		Timeout:     d.cmdTimeout,
	}).OK() {
		return success("security runtime already installed")
	}

	for _, cmd := range []cmdexec.Command{
		{Line: fmt.Sprintf("helm repo add %s %s", sec.HelmRepo, sec.HelmRepoURL), Description: "Adding helm repo", Timeout: d.cmdTimeout},
		{Line: "helm repo update " + sec.HelmRepo, Description: "Updating helm repo", Timeout: d.cmdTimeout},
		{Line: fmt.Sprintf("helm upgrade --install %s %s -n %s --create-namespace", sec.Release, sec.Chart, sec.Namespace), Description: "Installing security runtime", Timeout: d.cmdTimeout},
	} {
		if out := runner.Run(ctx, cmd); !out.OK() {
			return out
		}
	}

	// Readiness wait is best-effort: a slow rollout should not fail
	// the optional install.
	runner.Run(ctx, cmdexec.Command{
		Line:        fmt.Sprintf("kubectl wait --for=condition=ready pod -l app.kubernetes.io/name=%s -n %s --timeout=300s", sec.HelmRepo, sec.Namespace),
		Description: "Waiting for security runtime pods",
		Timeout:     6 * time.Minute,
	})
	return success("security runtime installed")
}

func (d *Deployer) applySecurityPolicy(ctx context.Context) cmdexec.Outcome {
	runner := d.exec.Runner()
	sec := d.cfg.Deploy.Security

	crd := runner.Run(ctx, cmdexec.Command{
		Line:        "kubectl get crd " + sec.CRD,
		Description: "Checking security runtime CRDs",
		Timeout:     d.cmdTimeout,
	})
	if !crd.OK() {
		return failure("security runtime CRDs not found, policy skipped")
	}

	return runner.Run(ctx, cmdexec.Command{
		Line:        "kubectl apply -f " + sec.PolicyManifest,
		Description: "Applying security policy",
		Dir:         d.cfg.Deploy.ProjectDir,
		Timeout:     d.cmdTimeout,
	})
}

func (d *Deployer) summarize(ctx context.Context) cmdexec.Outcome {
	out := d.exec.Runner().Run(ctx, cmdexec.Command{
		Line:        fmt.Sprintf("kubectl get all -l app=%s", d.cfg.App.Name),
		Description: "Current deployment status",
		Timeout:     d.cmdTimeout,
	})
	// Informational only; the summary step itself always succeeds.
	return success(out.Stdout)
}

func (d *Deployer) installCandidates(lines []string) []cmdexec.Command {
	cmds := make([]cmdexec.Command, len(lines))
	for i, line := range lines {
		cmds[i] = cmdexec.Command{
			Line:        line,
			Description: "Installing monitoring dependencies",
			Dir:         d.cfg.Deploy.ProjectDir,
			Timeout:     d.cmdTimeout,
		}
	}
	return cmds
}

func success(msg string) cmdexec.Outcome {
	return cmdexec.Outcome{Kind: cmdexec.KindSuccess, Exited: true, Stdout: msg}
}

func failure(diag string) cmdexec.Outcome {
	return cmdexec.Outcome{Kind: cmdexec.KindFailure, Diagnostic: diag}
}
