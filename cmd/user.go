package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/kubeconfig"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their cluster-side bindings",
	}

	cmd.AddCommand(
		newUserListCommand(a),
		&cobra.Command{
			Use:   "get ID",
			Short: "Show a user with their cluster role and namespaces",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := a.services.Users.GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printYAML(cmd, u)
			},
		},
		newUserCreateCommand(a),
		newUserUpdateCommand(a),
		&cobra.Command{
			Use:   "role ID ROLE",
			Short: "Make ROLE the only cluster role of a user",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.UpdateUserClusterRole(cmd.Context(), args[0], zcpv1.ClusterRole(args[1]))
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a user and every cluster object they own",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.DeleteUser(cmd.Context(), args[0])
			},
		},
		newPasswordCommand(a),
		&cobra.Command{
			Use:   "reset-credentials ID ACTION...",
			Short: "Ask a user to perform required actions, such as UPDATE_PASSWORD or CONFIGURE_TOTP",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.ResetCredentials(cmd.Context(), args[0], args[1:])
			},
		},
		newOTPCommand(a),
		&cobra.Command{
			Use:   "logout ID",
			Short: "End every session of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.Logout(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "reset-serviceaccount ID",
			Short: "Recreate the service account of a user, revoking its tokens",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.ResetServiceAccount(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "rolebindings ID",
			Short: "List the role bindings of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rbs, err := a.services.Users.UserRoleBindings(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printYAML(cmd, rbs)
			},
		},
		newKubeConfigCommand(a),
	)

	return cmd
}

func newUserListCommand(a *app) *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users with the number of namespaces they are bound in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.services.Users.ListUsersWithUsage(cmd.Context(), keyword)
			if err != nil {
				return err
			}
			return printYAML(cmd, users)
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "", "Only list users whose username or email contains this.")

	return cmd
}

// addIdentityFlags binds the editable fields of an identity record to fs.
func addIdentityFlags(fs *pflag.FlagSet, u *zcpv1.IdentityUser, disabled *bool) {
	fs.StringVar(&u.Email, "email", "", "The email address of the user.")
	fs.StringVar(&u.FirstName, "first-name", "", "The first name of the user.")
	fs.StringVar(&u.LastName, "last-name", "", "The last name of the user.")
	fs.StringVar(&u.DefaultNamespace, "default-namespace", "", "The namespace issued kubeconfigs default to.")
	fs.BoolVar(&u.EmailVerified, "email-verified", false, "Mark the email address as verified.")
	fs.BoolVar(disabled, "disabled", false, "Create or keep the user disabled.")
}

func newUserCreateCommand(a *app) *cobra.Command {
	var (
		u        zcpv1.User
		role     string
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Create a user with a service account and a cluster role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Username = args[0]
			u.Enabled = !disabled
			u.ClusterRole = zcpv1.ClusterRole(role)

			id, err := a.services.Users.CreateUser(cmd.Context(), u)
			if err != nil {
				return err
			}
			return printYAML(cmd, map[string]string{"id": id})
		},
	}
	addIdentityFlags(cmd.Flags(), &u.IdentityUser, &disabled)
	cmd.Flags().StringVar(&role, "cluster-role", "", "The cluster role of the user. Defaults to --default-cluster-role.")

	return cmd
}

func newUserUpdateCommand(a *app) *cobra.Command {
	var (
		u        zcpv1.IdentityUser
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the identity record of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Enabled = !disabled
			return a.services.Users.UpdateUser(cmd.Context(), args[0], u)
		},
	}
	addIdentityFlags(cmd.Flags(), &u, &disabled)

	return cmd
}

func newPasswordCommand(a *app) *cobra.Command {
	var credential zcpv1.Credential

	cmd := &cobra.Command{
		Use:   "password ID",
		Short: "Set the password of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if credential.Temporary {
				return a.services.Users.ResetPassword(cmd.Context(), args[0], credential)
			}
			return a.services.Users.UpdatePassword(cmd.Context(), args[0], credential.Password)
		},
	}
	cmd.Flags().StringVar(&credential.Password, "password", "", "The new password.")
	cmd.Flags().BoolVar(&credential.Temporary, "temporary", false, "Require the user to change the password on next login.")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newOTPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Manage the one-time password of a user",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable ID",
			Short: "Start a one-time password registration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.EnableOTP(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Remove the one-time password of a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.services.Users.DeleteOTP(cmd.Context(), args[0])
			},
		},
	)

	return cmd
}

func newKubeConfigCommand(a *app) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "kubeconfig ID",
		Short: "Issue a kubeconfig authenticating as the service account of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := a.services.Users.KubeConfig(cmd.Context(), args[0], namespace)
			if err != nil {
				return err
			}

			out, err := kubeconfig.Marshal(config)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "The namespace of the context. Defaults to the default namespace of the user.")

	return cmd
}

func newClusterRoleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clusterroles",
		Short: "List the cluster roles that can be granted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			roles, err := a.services.Users.ListClusterRoles(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd, roles)
		},
	}
}
