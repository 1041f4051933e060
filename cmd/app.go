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

package main

import (
	"context"
	"errors"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/mikelane/previewgc/internal/activity"
	"github.com/mikelane/previewgc/internal/certs"
	"github.com/mikelane/previewgc/internal/cleanup"
	"github.com/mikelane/previewgc/internal/config"
	"github.com/mikelane/previewgc/internal/dns"
	"github.com/mikelane/previewgc/internal/git"
	"github.com/mikelane/previewgc/internal/github"
	"github.com/mikelane/previewgc/internal/kube"
	"github.com/mikelane/previewgc/internal/loadbalancer"
	"github.com/mikelane/previewgc/internal/preview"
)

// app is the fully wired garbage collector.
type app struct {
	inventory *preview.Inventory
	scheduler *cleanup.Scheduler
}

// clients holds one Kubernetes client per cluster.
type clients struct {
	coreDev   client.Client
	harvester client.Client
}

func newClients(cfg *config.Config) (*clients, error) {
	scheme := kube.NewScheme()

	coreDev, err := kube.NewClient(cfg.CoreDev.Kubeconfig, scheme)
	if err != nil {
		return nil, fmt.Errorf("core-dev cluster: %w", err)
	}
	harvester, err := kube.NewClient(cfg.Harvester.Kubeconfig, scheme)
	if err != nil {
		return nil, fmt.Errorf("harvester cluster: %w", err)
	}

	return &clients{coreDev: coreDev, harvester: harvester}, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	c, err := newClients(cfg)
	if err != nil {
		return nil, err
	}

	branches, err := newBranchSource(cfg.Branches)
	if err != nil {
		return nil, err
	}

	deleter, err := dns.NewCloudDNS(ctx, dns.ClientOptions(cfg.DNS.CredentialsFile, cfg.DNS.Endpoint)...)
	if err != nil {
		return nil, err
	}

	inventory := newInventory(cfg, c, deleter, activity.NewMySQLProber(cfg.Activity.ConnectTimeout))
	classifier := cleanup.NewClassifier(inventory.Backends(), branches, cfg.Branches.StalenessWindow, cfg.Activity.MaxConcurrentDB)
	orchestrator := cleanup.NewOrchestrator(certs.NewManager(c.coreDev, cfg.Certificates.Namespace), cfg.DryRun, cfg.MaxConcurrentTeardowns)

	scheduler := cleanup.NewScheduler(inventory, classifier, orchestrator, cfg.Interval)
	if cfg.LoadBalancer.Enabled {
		scheduler.WithReclaimer(newReclaimer(cfg, c))
	}
	if cfg.Metrics.Pushgateway != "" {
		scheduler.WithPushgateway(cfg.Metrics.Pushgateway, cfg.Metrics.Job)
	}

	return &app{inventory: inventory, scheduler: scheduler}, nil
}

func newInventory(cfg *config.Config, c *clients, deleter dns.Deleter, prober activity.Prober) *preview.Inventory {
	coreDev := preview.NewCoreDevCluster(
		preview.CoreDevBackend(cfg.CoreDev.Domain, cfg.CoreDev.DNSProject, cfg.CoreDev.DNSZone),
		c.coreDev,
		cfg.CoreDev.LabelSelector,
		deleter,
		prober,
		probeConfig(cfg.Activity),
	)
	harvester := preview.NewHarvesterCluster(
		preview.HarvesterBackend(cfg.Harvester.Domain, cfg.Harvester.DNSProject, cfg.Harvester.DNSZone),
		c.harvester,
		deleter,
	)
	return preview.NewInventory(coreDev, harvester)
}

func newReclaimer(cfg *config.Config, c *clients) *loadbalancer.Reclaimer {
	harvester := preview.NewHarvesterCluster(
		preview.HarvesterBackend(cfg.Harvester.Domain, cfg.Harvester.DNSProject, cfg.Harvester.DNSZone),
		c.harvester,
		nil,
	)
	return loadbalancer.NewReclaimer(c.coreDev, harvester, cfg.LoadBalancer.Namespace, cfg.LoadBalancer.Label, cfg.DryRun)
}

func probeConfig(a config.ActivityConfig) preview.ProbeConfig {
	return preview.ProbeConfig{
		Pod:          a.Pod,
		Secret:       a.Secret,
		SecretKey:    a.SecretKey,
		HostTemplate: a.HostTemplate,
		Port:         a.Port,
		User:         a.User,
		Database:     a.Database,
		Window:       a.Window,
	}
}

func newBranchSource(cfg config.BranchConfig) (cleanup.BranchSource, error) {
	switch cfg.Source {
	case "github":
		gh, err := github.NewClient(cfg.GitHubOwner, cfg.GitHubRepo, cfg.GitHubToken, cfg.GitHubMaxRetries)
		if err != nil {
			return nil, err
		}
		return gh, nil
	case "git":
		repo, err := git.NewRepository(cfg.GitDir, cfg.GitRemote, nil)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown branch source %q", cfg.Source)
	}
}

// validateClusters checks the settings the load balancer command needs.
func validateClusters(cfg *config.Config) error {
	var errs []error
	if cfg.CoreDev.Kubeconfig == "" {
		errs = append(errs, errors.New("coredev.kubeconfig is required"))
	}
	if cfg.Harvester.Kubeconfig == "" {
		errs = append(errs, errors.New("harvester.kubeconfig is required"))
	}
	return errors.Join(errs...)
}
