package config

import (
	"fmt"
	"os"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config is the explicit configuration passed to every component
// constructor. There are no process-wide singletons.
type Config struct {
	App     App      `yaml:"app"`
	Deploy  Deploy   `yaml:"deploy"`
	Status  Status   `yaml:"status"`
	Monitor Monitor  `yaml:"monitor"`
	Notify  []string `yaml:"notify" validate:"dive,required"`
}

// App identifies the application being rolled out.
type App struct {
	Name  string `yaml:"name" validate:"required"`
	Image string `yaml:"image" validate:"required"`
	Port  int    `yaml:"port" validate:"gt=0,lte=65535"`
}

// Deploy configures the rollout pipeline.
type Deploy struct {
	ProjectDir     string   `yaml:"project_dir"`
	RequiredFiles  []string `yaml:"required_files"`
	Validators     []string `yaml:"validators"`
	ManifestDir    string   `yaml:"manifest_dir" validate:"required"`
	Manifests      []string `yaml:"manifests" validate:"min=1"`
	CommandTimeout string   `yaml:"command_timeout" validate:"required"`
	RolloutTimeout string   `yaml:"rollout_timeout" validate:"required"`
	ReadyWait      string   `yaml:"ready_wait" validate:"required"`
	SmokePort      int      `yaml:"smoke_port" validate:"gt=0,lte=65535"`
	ForwardPort    int      `yaml:"forward_port" validate:"gt=0,lte=65535"`
	MonitorInstall []string `yaml:"monitor_install"`
	Security       Security `yaml:"security"`
}

// Security configures the optional runtime-security component.
type Security struct {
	Namespace      string `yaml:"namespace"`
	HelmRepo       string `yaml:"helm_repo"`
	HelmRepoURL    string `yaml:"helm_repo_url"`
	Chart          string `yaml:"chart"`
	Release        string `yaml:"release"`
	CRD            string `yaml:"crd"`
	PolicyManifest string `yaml:"policy_manifest"`
}

// Status configures the deployment status checker.
type Status struct {
	// GuidanceThreshold is the success ratio at or above which the
	// "mostly successful" guidance branch is taken.
	GuidanceThreshold float64 `yaml:"guidance_threshold" validate:"gte=0,lte=1"`
}

// Monitor configures the system threshold monitor.
type Monitor struct {
	CPUThreshold    float64 `yaml:"cpu_threshold" validate:"gte=0,lte=100"`
	MemoryThreshold float64 `yaml:"memory_threshold" validate:"gte=0,lte=100"`
	DiskThreshold   float64 `yaml:"disk_threshold" validate:"gte=0,lte=100"`
	DiskPath        string  `yaml:"disk_path" validate:"required"`
	Interval        string  `yaml:"interval" validate:"required"`
	Cron            string  `yaml:"cron"`
	TopProcesses    int     `yaml:"top_processes" validate:"gte=0"`
	AlertFile       string  `yaml:"alert_file"`
	AlertTemplate   string  `yaml:"alert_template"`
}

// Default returns the built-in configuration, usable without any config
// file.
func Default() *Config {
	return &Config{
		App: App{
			Name:  "wisecow",
			Image: "wisecow:local",
			Port:  4499,
		},
		Deploy: Deploy{
			RequiredFiles:  []string{"Dockerfile"},
			ManifestDir:    "k8s",
			Manifests:      []string{"deployment.yaml", "service.yaml", "ingress.yaml"},
			CommandTimeout: "5m",
			RolloutTimeout: "5m",
			ReadyWait:      "15s",
			SmokePort:      4499,
			ForwardPort:    8080,
			Security: Security{
				Namespace:   "kubearmor",
				HelmRepo:    "kubearmor",
				HelmRepoURL: "https://kubearmor.github.io/charts",
				Chart:       "kubearmor/kubearmor-operator",
				Release:     "kubearmor-operator",
				CRD:         "kubearmorpolicies.security.kubearmor.com",
			},
		},
		Status: Status{GuidanceThreshold: 0.8},
		Monitor: Monitor{
			CPUThreshold:    80,
			MemoryThreshold: 80,
			DiskThreshold:   80,
			DiskPath:        "/",
			Interval:        "60s",
			TopProcesses:    10,
		},
	}
}

// Load reads, env-expands, parses, and validates a config file. Values
// not present in the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	data, err = envsubst.Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("expanding env vars: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints on a config.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, field := range []struct{ name, value string }{
		{"deploy.command_timeout", cfg.Deploy.CommandTimeout},
		{"deploy.rollout_timeout", cfg.Deploy.RolloutTimeout},
		{"deploy.ready_wait", cfg.Deploy.ReadyWait},
		{"monitor.interval", cfg.Monitor.Interval},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid config: %s: %w", field.name, err)
		}
	}
	return nil
}

// MustDuration parses a duration string already checked by Validate.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("unvalidated duration %q: %v", s, err))
	}
	return d
}
