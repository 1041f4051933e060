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
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/mikelane/previewgc/internal/config"
)

func main() {
	if err := newRootCommand().ExecuteContext(ctrl.SetupSignalHandler()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	opts := zap.Options{
		Development: true,
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}

	root := &cobra.Command{
		Use:   "preview-gc",
		Short: "Delete preview environments whose branch is gone or that are no longer used",
		Long: `preview-gc lists the preview environments on the core-dev and Harvester
clusters, selects those whose branch was deleted, whose branch has no recent
commits, or whose database shows no recent activity, and tears them down
together with their certificates and DNS records.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
			cmd.SetContext(log.IntoContext(cmd.Context(), ctrl.Log.WithName("preview-gc")))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	config.BindFlags(root.PersistentFlags())

	goflags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(goflags)
	root.PersistentFlags().AddGoFlagSet(goflags)

	root.AddCommand(newLoadBalancersCommand(&configPath))
	return root
}

func newLoadBalancersCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "loadbalancers",
		Short: "Only delete load balancers whose Harvester preview environment is gone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, cmd)
			if err != nil {
				return err
			}
			if err := validateClusters(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return reclaimLoadBalancers(cmd.Context(), cfg)
		},
	}
}

func loadConfig(path string, cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	log.FromContext(cmd.Context()).V(1).Info("Loaded configuration",
		"dryRun", cfg.DryRun, "interval", cfg.Interval, "branchSource", cfg.Branches.Source)
	return cfg, nil
}

// run executes the garbage collector until ctx is done, or once without an interval.
func run(ctx context.Context, cfg *config.Config) error {
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.DryRun {
		log.FromContext(ctx).Info("Running in dry-run mode, nothing will be deleted")
	}
	return app.scheduler.Start(ctx)
}

func reclaimLoadBalancers(ctx context.Context, cfg *config.Config) error {
	clients, err := newClients(cfg)
	if err != nil {
		return err
	}

	reclaimed, err := newReclaimer(cfg, clients).Reclaim(ctx)
	log.FromContext(ctx).Info("Reclaimed load balancers", "count", len(reclaimed), "dryRun", cfg.DryRun)
	return err
}
