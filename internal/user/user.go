package user

import (
	"context"
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/naming"
	rbacv1 "k8s.io/api/rbac/v1"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// CreateUser gives a new user a ServiceAccount and a cluster role, then creates
// the identity record. It returns the identity provider id of the user.
func (s *Service) CreateUser(ctx context.Context, u zcpv1.User) (string, error) {
	if err := common.ValidateUsername(u.Username); err != nil {
		return "", err
	}
	ctx = s.logger(ctx, "username", u.Username)
	logger := log.FromContext(ctx)

	role := u.ClusterRole
	if role == "" {
		role = s.Config.DefaultClusterRole
	}

	if err := s.RBAC.EnsureServiceAccount(ctx, u.Username); err != nil {
		return "", err
	}
	if err := s.RBAC.GrantClusterRole(ctx, u.Username, role); err != nil {
		return "", err
	}

	id, err := s.Provider.CreateUser(ctx, u.IdentityUser)
	if err != nil {
		logger.Error(err, "failed to create identity provider user")
		return "", identityError(common.CodeUserCreate, "identity", err)
	}
	logger.Info("successfully created user", "id", id, "clusterRole", role)

	return id, nil
}

// GetUser returns an identity record joined with its cluster role and namespaces.
func (s *Service) GetUser(ctx context.Context, id string) (*zcpv1.User, error) {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return nil, err
	}

	crb, err := s.RBAC.ClusterRoleBinding(ctx, identityUser.Username)
	if err != nil {
		return nil, err
	}
	role := zcpv1.NoRole
	if crb != nil {
		role = zcpv1.ClusterRole(crb.RoleRef.Name)
	}

	rbs, err := s.RBAC.UserRoleBindings(ctx, identityUser.Username)
	if err != nil {
		return nil, err
	}
	namespaces := namespacesOf(rbs)

	return &zcpv1.User{
		IdentityUser:  *identityUser,
		ClusterRole:   role,
		Namespaces:    namespaces,
		UsedNamespace: len(namespaces),
	}, nil
}

// UpdateUser replaces the identity record of a user. The username cannot change
// because every cluster object of the user is derived from it.
func (s *Service) UpdateUser(ctx context.Context, id string, u zcpv1.IdentityUser) error {
	current, err := s.identityUser(ctx, id)
	if err != nil {
		return err
	}
	if u.Username != "" && u.Username != current.Username {
		return common.NewError(common.CodeUserUpdate, common.KindInvalidArgument, "identity",
			fmt.Errorf("username of user %q cannot change from %q to %q", id, current.Username, u.Username))
	}
	u.ID = id
	u.Username = current.Username

	if err := s.Provider.UpdateUser(ctx, u); err != nil {
		return identityError(common.CodeUserUpdate, "identity", err)
	}
	log.FromContext(s.logger(ctx, "username", u.Username)).Info("successfully updated user")

	return nil
}

// UpdateUserClusterRole makes role the only cluster role of a user.
func (s *Service) UpdateUserClusterRole(ctx context.Context, id string, role zcpv1.ClusterRole) error {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.RBAC.EnsureServiceAccount(ctx, identityUser.Username); err != nil {
		return err
	}
	return s.RBAC.GrantClusterRole(ctx, identityUser.Username, role)
}

// DeleteUser removes every cluster object of a user and then the identity record.
// If the cluster cleanup fails the identity record is kept, so the call can be retried.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return err
	}
	ctx = s.logger(ctx, "username", identityUser.Username)

	if err := s.RBAC.DeleteAllUserObjects(ctx, identityUser.Username); err != nil {
		return common.WithStage(common.CodeUserDelete, "rbac", "", err)
	}
	if err := s.Provider.DeleteUser(ctx, id); err != nil {
		return common.WithStage(common.CodeUserDelete, "identity", "rbac", identityError(common.CodeUserDelete, "identity", err))
	}
	log.FromContext(ctx).Info("successfully deleted user")

	return nil
}

// ResetServiceAccount recreates the ServiceAccount of a user, invalidating its tokens.
func (s *Service) ResetServiceAccount(ctx context.Context, id string) error {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return err
	}
	return s.RBAC.ResetServiceAccount(ctx, identityUser.Username)
}

// UserRoleBindings returns the RoleBindings of a user sorted by namespace.
func (s *Service) UserRoleBindings(ctx context.Context, id string) ([]rbacv1.RoleBinding, error) {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RBAC.UserRoleBindings(ctx, identityUser.Username)
}

// ListClusterRoles returns the names of the cluster roles that can be granted.
func (s *Service) ListClusterRoles(ctx context.Context) ([]string, error) {
	return s.RBAC.ListClusterRoles(ctx)
}

// KubeConfig issues a kubeconfig for a user. An empty namespace falls back to the
// default namespace of the user.
func (s *Service) KubeConfig(ctx context.Context, id, namespace string) (*clientcmdapi.Config, error) {
	identityUser, err := s.identityUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if namespace == "" {
		namespace = identityUser.DefaultNamespace
	}
	if err := s.RBAC.EnsureServiceAccount(ctx, identityUser.Username); err != nil {
		return nil, err
	}

	name := identityUser.Email
	if name == "" {
		name = naming.ServiceAccountName(identityUser.Username)
	}

	return s.Issuer.KubeConfig(ctx, identityUser.Username, name, namespace)
}
