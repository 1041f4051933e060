/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package config loads preview-gc settings from defaults, an optional YAML file,
// PREVIEW_GC_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// PREVIEW_GC_DRY_RUN or PREVIEW_GC_COREDEV_KUBECONFIG.
const EnvPrefix = "PREVIEW_GC"

// Config is the complete configuration for one garbage-collection run.
type Config struct {
	// DryRun logs intended deletions without mutating anything
	DryRun bool `mapstructure:"dry-run"`
	// Interval between passes; zero runs a single pass
	Interval time.Duration `mapstructure:"interval"`
	// MaxConcurrentTeardowns bounds the teardown fan-out; zero means unbounded
	MaxConcurrentTeardowns int `mapstructure:"max-concurrent-teardowns"`

	CoreDev   BackendConfig `mapstructure:"coredev"`
	Harvester BackendConfig `mapstructure:"harvester"`

	Branches     BranchConfig       `mapstructure:"branches"`
	Activity     ActivityConfig     `mapstructure:"activity"`
	DNS          DNSConfig          `mapstructure:"dns"`
	Certificates CertificateConfig  `mapstructure:"certificates"`
	LoadBalancer LoadBalancerConfig `mapstructure:"loadbalancer"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// BackendConfig describes how to reach one cluster backend and where its DNS records live.
type BackendConfig struct {
	Kubeconfig    string `mapstructure:"kubeconfig"`
	LabelSelector string `mapstructure:"label-selector"`
	Domain        string `mapstructure:"domain"`
	DNSProject    string `mapstructure:"dns-project"`
	DNSZone       string `mapstructure:"dns-zone"`
}

// BranchConfig selects the branch source and the commit-activity window.
type BranchConfig struct {
	// Source is either "github" or "git"
	Source          string        `mapstructure:"source"`
	StalenessWindow time.Duration `mapstructure:"staleness-window"`

	GitHubOwner string `mapstructure:"github-owner"`
	GitHubRepo  string `mapstructure:"github-repo"`
	GitHubToken string `mapstructure:"github-token"`
	// GitHubMaxRetries enables retries of rate-limited or failed GitHub calls.
	// The default of zero keeps the pipeline free of automatic retries.
	GitHubMaxRetries int `mapstructure:"github-max-retries"`

	GitDir    string `mapstructure:"git-dir"`
	GitRemote string `mapstructure:"git-remote"`
}

// ActivityConfig locates the in-namespace database used by the CoreDev inactivity probe.
type ActivityConfig struct {
	Window          time.Duration `mapstructure:"window"`
	Pod             string        `mapstructure:"pod"`
	Secret          string        `mapstructure:"secret"`
	SecretKey       string        `mapstructure:"secret-key"`
	HostTemplate    string        `mapstructure:"host-template"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Database        string        `mapstructure:"database"`
	ConnectTimeout  time.Duration `mapstructure:"connect-timeout"`
	MaxConcurrentDB int           `mapstructure:"max-concurrent"`
}

// DNSConfig holds Cloud DNS credentials.
type DNSConfig struct {
	CredentialsFile string `mapstructure:"credentials-file"`
	Endpoint        string `mapstructure:"endpoint"`
}

// CertificateConfig locates cert-manager Certificates on the CoreDev cluster.
type CertificateConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// LoadBalancerConfig locates load-balancer deployments on the CoreDev cluster.
type LoadBalancerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Label     string `mapstructure:"label"`
}

// MetricsConfig configures the Prometheus Pushgateway; empty disables pushing.
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		CoreDev: BackendConfig{
			Domain:     "staging.gitpod-dev.com",
			DNSProject: "gitpod-dev",
			DNSZone:    "gitpod-dev-com",
		},
		Harvester: BackendConfig{
			Domain:     "preview.gitpod-dev.com",
			DNSProject: "gitpod-core-dev",
			DNSZone:    "preview-gitpod-dev-com",
		},
		Branches: BranchConfig{
			Source:          "github",
			StalenessWindow: 5 * 24 * time.Hour,
			GitRemote:       "origin",
			GitDir:          ".",
		},
		Activity: ActivityConfig{
			Window:          48 * time.Hour,
			Pod:             "mysql-0",
			Secret:          "db-password",
			SecretKey:       "mysql-root-password",
			HostTemplate:    "db.%s.svc.cluster.local",
			Port:            3306,
			User:            "root",
			Database:        "gitpod",
			ConnectTimeout:  10 * time.Second,
			MaxConcurrentDB: 8,
		},
		Certificates: CertificateConfig{
			Namespace: "certs",
		},
		LoadBalancer: LoadBalancerConfig{
			Enabled:   true,
			Namespace: "loadbalancers",
			Label:     "gitpod.io/lbName",
		},
		Metrics: MetricsConfig{
			Job: "preview-gc",
		},
	}
}

// BindFlags registers the flags that override configuration values.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Bool("dry-run", d.DryRun, "Only log which preview environments would be deleted")
	fs.Duration("interval", d.Interval, "Run repeatedly with this interval; 0 runs a single pass")
	fs.String("coredev-kubeconfig", "", "Path to the core-dev cluster kubeconfig")
	fs.String("harvester-kubeconfig", "", "Path to the Harvester cluster kubeconfig")
	fs.String("branch-source", d.Branches.Source, "Where to list branches from: github or git")
	fs.String("github-owner", "", "GitHub repository owner")
	fs.String("github-repo", "", "GitHub repository name")
	fs.String("git-dir", d.Branches.GitDir, "Local clone used when --branch-source=git")
	fs.String("dns-credentials-file", "", "Service account JSON used for Cloud DNS")
	fs.String("pushgateway", "", "Prometheus Pushgateway URL")
}

var flagKeys = map[string]string{
	"dry-run":              "dry-run",
	"interval":             "interval",
	"coredev-kubeconfig":   "coredev.kubeconfig",
	"harvester-kubeconfig": "harvester.kubeconfig",
	"branch-source":        "branches.source",
	"github-owner":         "branches.github-owner",
	"github-repo":          "branches.github-repo",
	"git-dir":              "branches.git-dir",
	"dns-credentials-file": "dns.credentials-file",
	"pushgateway":          "metrics.pushgateway",
}

// Load builds a Config. Precedence, lowest first: defaults, file, environment, flags.
// An empty path skips the file; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if fs != nil {
		for flagName, key := range flagKeys {
			if f := fs.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("dry-run", d.DryRun)
	v.SetDefault("interval", d.Interval)
	v.SetDefault("max-concurrent-teardowns", d.MaxConcurrentTeardowns)

	for prefix, b := range map[string]BackendConfig{"coredev": d.CoreDev, "harvester": d.Harvester} {
		v.SetDefault(prefix+".kubeconfig", b.Kubeconfig)
		v.SetDefault(prefix+".label-selector", b.LabelSelector)
		v.SetDefault(prefix+".domain", b.Domain)
		v.SetDefault(prefix+".dns-project", b.DNSProject)
		v.SetDefault(prefix+".dns-zone", b.DNSZone)
	}

	v.SetDefault("branches.source", d.Branches.Source)
	v.SetDefault("branches.staleness-window", d.Branches.StalenessWindow)
	v.SetDefault("branches.github-owner", d.Branches.GitHubOwner)
	v.SetDefault("branches.github-repo", d.Branches.GitHubRepo)
	v.SetDefault("branches.github-token", d.Branches.GitHubToken)
	v.SetDefault("branches.github-max-retries", d.Branches.GitHubMaxRetries)
	v.SetDefault("branches.git-dir", d.Branches.GitDir)
	v.SetDefault("branches.git-remote", d.Branches.GitRemote)

	v.SetDefault("activity.window", d.Activity.Window)
	v.SetDefault("activity.pod", d.Activity.Pod)
	v.SetDefault("activity.secret", d.Activity.Secret)
	v.SetDefault("activity.secret-key", d.Activity.SecretKey)
	v.SetDefault("activity.host-template", d.Activity.HostTemplate)
	v.SetDefault("activity.port", d.Activity.Port)
	v.SetDefault("activity.user", d.Activity.User)
	v.SetDefault("activity.database", d.Activity.Database)
	v.SetDefault("activity.connect-timeout", d.Activity.ConnectTimeout)
	v.SetDefault("activity.max-concurrent", d.Activity.MaxConcurrentDB)

	v.SetDefault("dns.credentials-file", d.DNS.CredentialsFile)
	v.SetDefault("dns.endpoint", d.DNS.Endpoint)
	v.SetDefault("certificates.namespace", d.Certificates.Namespace)
	v.SetDefault("loadbalancer.enabled", d.LoadBalancer.Enabled)
	v.SetDefault("loadbalancer.namespace", d.LoadBalancer.Namespace)
	v.SetDefault("loadbalancer.label", d.LoadBalancer.Label)
	v.SetDefault("metrics.pushgateway", d.Metrics.Pushgateway)
	v.SetDefault("metrics.job", d.Metrics.Job)
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.CoreDev.Kubeconfig == "" {
		errs = append(errs, errors.New("coredev.kubeconfig is required"))
	}
	if c.Harvester.Kubeconfig == "" {
		errs = append(errs, errors.New("harvester.kubeconfig is required"))
	}

	switch c.Branches.Source {
	case "github":
		if c.Branches.GitHubOwner == "" || c.Branches.GitHubRepo == "" {
			errs = append(errs, errors.New("branches.github-owner and branches.github-repo are required for the github source"))
		}
		if c.Branches.GitHubMaxRetries < 0 {
			errs = append(errs, errors.New("branches.github-max-retries must not be negative"))
		}
	case "git":
		if c.Branches.GitDir == "" {
			errs = append(errs, errors.New("branches.git-dir is required for the git source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown branch source %q", c.Branches.Source))
	}

	if c.Branches.StalenessWindow <= 0 {
		errs = append(errs, errors.New("branches.staleness-window must be positive"))
	}
	if c.Activity.Window <= 0 {
		errs = append(errs, errors.New("activity.window must be positive"))
	}
	if c.Interval < 0 {
		errs = append(errs, errors.New("interval must not be negative"))
	}
	if c.MaxConcurrentTeardowns < 0 {
		errs = append(errs, errors.New("max-concurrent-teardowns must not be negative"))
	}

	return errors.Join(errs...)
}
