package rolebinding

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	"github.com/yanghoon/zcp-iam/internal/rolebinding/rbutils"
	rbacv1 "k8s.io/api/rbac/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const stageRoleBinding = "rolebinding"

// CreateRoleBinding binds a user to role inside namespace. A binding that already
// exists is reported as AlreadyExists.
func (m *Manager) CreateRoleBinding(ctx context.Context, namespace, username string, role zcpv1.ClusterRole) error {
	if err := validateBindingRequest(ctx, m.Client, namespace, username, role); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx).WithValues("namespace", namespace, "clusterRole", role)

	rbObject := objectcontext.Compose(ctx, m.Client, rbutils.Compose(username, namespace, m.SystemNamespace, role))
	if err := rbObject.CreateObject(); err != nil {
		return common.Upstream(common.CodeRoleBindingCreate, stageRoleBinding,
			fmt.Errorf("failed to create role binding %q in namespace %q: %w", rbObject.Name(), namespace, err))
	}
	metrics.ObserveRBACMutation("RoleBinding", "create")
	logger.Info("successfully created role binding", "roleBinding", rbObject.Name())

	return nil
}

// EditRoleBinding changes the role of a user inside namespace by deleting the
// current binding and creating a new one. The two steps are not atomic.
func (m *Manager) EditRoleBinding(ctx context.Context, namespace, username string, role zcpv1.ClusterRole) error {
	if err := validateBindingRequest(ctx, m.Client, namespace, username, role); err != nil {
		return err
	}

	if err := m.DeleteRoleBinding(ctx, namespace, username); err != nil {
		return err
	}

	return m.CreateRoleBinding(ctx, namespace, username, role)
}

// DeleteRoleBinding removes every binding of a user inside namespace. Having
// none is not an error.
func (m *Manager) DeleteRoleBinding(ctx context.Context, namespace, username string) error {
	if err := common.ValidateUsername(username); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx).WithValues("namespace", namespace)

	rbs, err := m.NamespaceRoleBindings(ctx, namespace)
	if err != nil {
		return err
	}
	derived := naming.RoleBindingName(username)
	rbs = slices.DeleteFunc(rbs, func(rb rbacv1.RoleBinding) bool {
		return !rbutils.IsOwnedBy(&rb, username, derived)
	})

	for i := range rbs {
		if err := objectcontext.Compose(ctx, m.Client, &rbs[i]).DeleteObject(); err != nil {
			return common.Upstream(common.CodeRoleBindingDelete, stageRoleBinding+"/"+namespace,
				fmt.Errorf("failed to delete role binding %q in namespace %q: %w", rbs[i].Name, namespace, err))
		}
		metrics.ObserveRBACMutation("RoleBinding", "delete")
	}
	logger.Info("successfully deleted role bindings", "deleted", len(rbs))

	return nil
}

// NamespaceRoleBindings returns the user RoleBindings of a namespace.
func (m *Manager) NamespaceRoleBindings(ctx context.Context, namespace string) ([]rbacv1.RoleBinding, error) {
	return m.roleBindings(ctx, client.InNamespace(namespace))
}

// AllRoleBindings returns the user RoleBindings of every namespace.
func (m *Manager) AllRoleBindings(ctx context.Context) ([]rbacv1.RoleBinding, error) {
	return m.roleBindings(ctx)
}

// UserRoleBindings returns the RoleBindings of a user in every namespace,
// sorted by namespace.
func (m *Manager) UserRoleBindings(ctx context.Context, username string) ([]rbacv1.RoleBinding, error) {
	rbs, err := m.AllRoleBindings(ctx)
	if err != nil {
		return nil, err
	}

	derived := naming.RoleBindingName(username)
	rbs = slices.DeleteFunc(rbs, func(rb rbacv1.RoleBinding) bool {
		return !rbutils.IsOwnedBy(&rb, username, derived)
	})
	slices.SortFunc(rbs, func(a, b rbacv1.RoleBinding) int {
		return cmp.Compare(a.Namespace, b.Namespace)
	})

	return rbs, nil
}

func (m *Manager) roleBindings(ctx context.Context, opts ...client.ListOption) ([]rbacv1.RoleBinding, error) {
	list, err := objectcontext.NewList(ctx, m.Client, &rbacv1.RoleBindingList{}, opts...)
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceUsers, stageRoleBinding, err)
	}

	return slices.DeleteFunc(list.Objects.(*rbacv1.RoleBindingList).Items, func(rb rbacv1.RoleBinding) bool {
		return !isManaged(&rb, naming.UsernameFromRoleBindingName)
	}), nil
}
