package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"sigs.k8s.io/yaml"
)

func newNamespaceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "namespace",
		Aliases: []string{"ns"},
		Short:   "Manage namespaces and their resource constraints",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List namespaces with their status, labels and user count",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				namespaces, err := a.services.Namespaces.ListNamespaces(cmd.Context())
				if err != nil {
					return err
				}
				return printYAML(cmd, namespaces)
			},
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Show the resource quota and limit range of a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				detail, err := a.services.Namespaces.GetNamespaceResourceDetail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printYAML(cmd, detail)
			},
		},
		newReconcileCommand(a),
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Namespaces.DeleteNamespace(cmd.Context(), args[0])
			},
		},
		newLabelCommand(a),
		&cobra.Command{
			Use:   "users NAME",
			Short: "List the users bound in a namespace",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				users, err := a.services.Users.ListNamespaceUsers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printYAML(cmd, users)
			},
		},
		&cobra.Command{
			Use:   "bind NAME USERNAME ROLE",
			Short: "Give a user a role inside a namespace",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.RBAC.CreateRoleBinding(cmd.Context(), args[0], args[1], zcpv1.ClusterRole(args[2]))
			},
		},
		&cobra.Command{
			Use:   "rebind NAME USERNAME ROLE",
			Short: "Change the role of a user inside a namespace",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.RBAC.EditRoleBinding(cmd.Context(), args[0], args[1], zcpv1.ClusterRole(args[2]))
			},
		},
		&cobra.Command{
			Use:   "unbind NAME USERNAME",
			Short: "Remove the role of a user inside a namespace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.RBAC.DeleteRoleBinding(cmd.Context(), args[0], args[1])
			},
		},
	)

	return cmd
}

func newReconcileCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "reconcile [NAME]",
		Short: "Create a namespace and bring its resource quota and limit range to the desired state",
		Long: `Reads the desired state from a YAML or JSON file, for example:

  namespace: team-a
  resourceQuota:
    cpuLimits: {value: 4, unit: Core}
    memoryLimits: {value: 8, unit: Gi}
    pods: 20
  limitRange:
    cpuDefault: {value: 500, unit: MilliCore}

An empty resourceQuota or limitRange deletes the corresponding object.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}

			var desired zcpv1.NamespaceResource
			if err := yaml.UnmarshalStrict(data, &desired); err != nil {
				return fmt.Errorf("failed to decode %s: %w", file, err)
			}
			if len(args) == 1 {
				desired.Namespace = args[0]
			}

			return a.services.Namespaces.ReconcileNamespace(cmd.Context(), desired)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "The file holding the desired namespace resources.")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newLabelCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "labels [NAME]",
		Short: "List the labels of a namespace, or of every namespace with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all || len(args) == 0 {
				labels, err := a.services.Namespaces.AllLabels(cmd.Context())
				if err != nil {
					return err
				}
				return printYAML(cmd, labels)
			}

			labels, err := a.services.Namespaces.Labels(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printYAML(cmd, labels)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List the distinct labels of every namespace.")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add NAME KEY=VALUE",
			Short: "Add a label to a namespace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Namespaces.AddLabel(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "remove NAME KEY=VALUE",
			Short: "Remove a label from a namespace if its value matches",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Namespaces.RemoveLabel(cmd.Context(), args[0], args[1])
			},
		},
	)

	return cmd
}
