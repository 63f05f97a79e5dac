// Package status inspects a live rollout: container runtime, cluster
// objects, endpoints, monitoring tooling, and security components.
// Every check is optional — a status run reports, it never aborts —
// and the aggregate success ratio picks the guidance branch.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/capstan/capstan/internal/cmdexec"
	"github.com/capstan/capstan/internal/config"
	"github.com/capstan/capstan/internal/pipeline"
)

const checkTimeout = 30 * time.Second

// Checker runs the read-only deployment checks.
type Checker struct {
	cfg    *config.Config
	exec   *pipeline.StepExecutor
	logger *slog.Logger
}

// New creates a Checker.
func New(cfg *config.Config, exec *pipeline.StepExecutor, logger *slog.Logger) *Checker {
	return &Checker{cfg: cfg, exec: exec, logger: logger}
}

// Checks returns the ordered status checks. None are required: a
// missing component is a finding, not a failure of the status run.
func (c *Checker) Checks() []pipeline.Step {
	app := c.cfg.App
	sec := c.cfg.Deploy.Security

	check := func(name, line, desc string) pipeline.Step {
		return pipeline.Step{
			Name:     name,
			Required: false,
			Commands: []cmdexec.Command{{Line: line, Description: desc, Timeout: checkTimeout}},
		}
	}

	return []pipeline.Step{
		check("Container runtime", "docker --version", "Docker version"),
		check("App containers", "docker ps --filter name="+app.Name, "Running "+app.Name+" containers"),
		check("App images", "docker images "+app.Name, app.Name+" images"),
		check("Cluster connectivity", "kubectl cluster-info --request-timeout=10s", "Cluster connectivity"),
		check("Deployment object", "kubectl get deployment "+app.Name, app.Name+" deployment"),
		check("Service object", "kubectl get service "+app.Name, app.Name+" service"),
		check("Ingress object", fmt.Sprintf("kubectl get ingress %s-ingress", app.Name), app.Name+" ingress"),
		check("Pods", "kubectl get pods -l app="+app.Name, app.Name+" pods"),
		check("TLS certificates", "kubectl get certificates", "TLS certificates"),
		check("Certificate issuers", "kubectl get clusterissuer", "Certificate issuers"),
		check("Service endpoints", "kubectl get endpoints "+app.Name, "Service endpoints"),
		check("Cert-manager", "kubectl get namespace cert-manager", "cert-manager namespace"),
		check("Security runtime", "kubectl get namespace "+sec.Namespace, "Security runtime namespace"),
		check("Security policies", "kubectl get crd "+sec.CRD, "Security policy CRDs"),
	}
}

// Run executes every check and prints the summary and guidance.
func (c *Checker) Run(ctx context.Context) pipeline.RunReport {
	p := pipeline.New(c.exec, c.logger, c.Checks())
	report := p.Run(ctx)

	pr := c.exec.Printer()
	for _, line := range Guidance(report.Summary, c.cfg, c.cfg.Status.GuidanceThreshold) {
		pr.Println(line)
	}
	return report
}

// Guidance returns next-step advice keyed off the success ratio. At or
// above the threshold the rollout counts as mostly successful.
func Guidance(s pipeline.RunSummary, cfg *config.Config, threshold float64) []string {
	if s.Ratio() >= threshold {
		return []string{
			"",
			"Deployment is mostly successful.",
			fmt.Sprintf("Access the app:   kubectl port-forward svc/%s %d:%d", cfg.App.Name, cfg.Deploy.ForwardPort, cfg.App.Port),
			fmt.Sprintf("Monitor the app:  capstan health http://localhost:%d --continuous", cfg.Deploy.ForwardPort),
			"System health:    capstan monitor --continuous",
		}
	}
	return []string{
		"",
		"Some components need attention.",
		"Check that the container runtime is up",
		"Verify the cluster is reachable: kubectl cluster-info",
		fmt.Sprintf("Re-apply manifests: kubectl apply -f %s/", cfg.Deploy.ManifestDir),
		fmt.Sprintf("Inspect pod logs:  kubectl logs -l app=%s", cfg.App.Name),
	}
}
