/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/setup"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/yaml"
)

var setupLog = ctrl.Log.WithName("setup")

// app holds what every command needs once flags are parsed.
type app struct {
	cfg      *config.Config
	services *setup.Services
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "unable to load .env file:", err)
		os.Exit(1)
	}

	if err := newRootCommand(config.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)

	root := &cobra.Command{
		Use:          "zcp-iam",
		Short:        "Reconciles namespace resource governance and user RBAC bindings",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.PushgatewayURL == "" {
				return nil
			}
			if err := metrics.Push(cmd.Context(), a.cfg.PushgatewayURL, a.cfg.PushJob); err != nil {
				setupLog.Error(err, "unable to push metrics", "url", a.cfg.PushgatewayURL)
			}
			return nil
		},
	}
	cfg.AddFlags(root.PersistentFlags())
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newNamespaceCommand(a),
		newUserCommand(a),
		newClusterRoleCommand(a),
	)

	return root
}

func (a *app) init(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		setupLog.Error(err, "invalid configuration")
		return err
	}
	metrics.InitializeIAMMetrics()

	c, err := setup.NewClient(a.cfg)
	if err != nil {
		setupLog.Error(err, "unable to create cluster client")
		return err
	}

	provider, err := setup.NewProvider(ctx, a.cfg)
	if err != nil {
		setupLog.Error(err, "unable to create identity provider", "provider", a.cfg.IdentityProvider)
		return err
	}

	a.services = setup.NewServices(c, provider, a.cfg)
	setupLog.V(1).Info("services ready", "provider", provider.Name(), "systemNamespace", a.cfg.SystemNamespace)

	return nil
}

// printYAML writes v to the command output as YAML.
func printYAML(cmd *cobra.Command, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
