package rolebinding

import (
	"context"
	"fmt"
	"slices"
	"strings"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	"github.com/yanghoon/zcp-iam/internal/rolebinding/rbutils"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const stageClusterRoleBinding = "clusterrolebinding"

// ClusterRoleBindings returns every ClusterRoleBinding owned by a user.
func (m *Manager) ClusterRoleBindings(ctx context.Context, username string) ([]rbacv1.ClusterRoleBinding, error) {
	crbs, err := m.AllClusterRoleBindings(ctx)
	if err != nil {
		return nil, err
	}

	derived := naming.ClusterRoleBindingName(username)
	return slices.DeleteFunc(crbs, func(crb rbacv1.ClusterRoleBinding) bool {
		return !rbutils.IsOwnedBy(&crb, username, derived)
	}), nil
}

// AllClusterRoleBindings returns every ClusterRoleBinding that belongs to some
// user, by label or by name.
func (m *Manager) AllClusterRoleBindings(ctx context.Context) ([]rbacv1.ClusterRoleBinding, error) {
	list, err := objectcontext.NewList(ctx, m.Client, &rbacv1.ClusterRoleBindingList{})
	if err != nil {
		return nil, common.Upstream(common.CodeClusterRoleBindingGet, stageClusterRoleBinding, err)
	}

	return slices.DeleteFunc(list.Objects.(*rbacv1.ClusterRoleBindingList).Items, func(crb rbacv1.ClusterRoleBinding) bool {
		return !isManaged(&crb, naming.UsernameFromClusterRoleBindingName)
	}), nil
}

// ClusterRoleBinding returns the single ClusterRoleBinding of a user, or nil if
// there is none. More than one is reported as an error, never resolved.
func (m *Manager) ClusterRoleBinding(ctx context.Context, username string) (*rbacv1.ClusterRoleBinding, error) {
	crbs, err := m.ClusterRoleBindings(ctx, username)
	if err != nil {
		return nil, err
	}

	switch len(crbs) {
	case 0:
		return nil, nil
	case 1:
		return &crbs[0], nil
	default:
		names := make([]string, 0, len(crbs))
		for _, crb := range crbs {
			names = append(names, crb.Name)
		}
		return nil, common.NewError(common.CodeMultipleBindings, common.KindMultipleActiveBindings, stageClusterRoleBinding,
			fmt.Errorf("user %q has %d cluster role bindings (%s), there should be only one", username, len(crbs), strings.Join(names, ", ")))
	}
}

// RevokeClusterRole deletes every ClusterRoleBinding of a user and returns how
// many were deleted. Having none is not an error.
func (m *Manager) RevokeClusterRole(ctx context.Context, username string) (int, error) {
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx)

	crbs, err := m.ClusterRoleBindings(ctx, username)
	if err != nil {
		return 0, err
	}
	if len(crbs) == 0 {
		logger.Info("no cluster role binding to revoke")
		return 0, nil
	}

	for i := range crbs {
		if err := objectcontext.Compose(ctx, m.Client, &crbs[i]).DeleteObject(); err != nil {
			return i, common.Upstream(common.CodeClusterRoleBindingDelete, stageClusterRoleBinding,
				fmt.Errorf("failed to delete cluster role binding %q: %w", crbs[i].Name, err))
		}
		metrics.ObserveRBACMutation("ClusterRoleBinding", "delete")
	}
	logger.Info("successfully revoked cluster role", "deleted", len(crbs))

	return len(crbs), nil
}

// GrantClusterRole replaces whatever ClusterRoleBindings a user has with a single
// one to role. Between the delete and the create the user holds no cluster role.
func (m *Manager) GrantClusterRole(ctx context.Context, username string, role zcpv1.ClusterRole) error {
	if err := common.ValidateUsername(username); err != nil {
		return err
	}
	if err := common.ValidateClusterRoleExists(ctx, m.Client, role); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx).WithValues("clusterRole", role)

	if _, err := m.RevokeClusterRole(ctx, username); err != nil {
		return err
	}

	desired := rbutils.ComposeClusterRoleBinding(username, m.SystemNamespace, role)
	err := objectcontext.Compose(ctx, m.Client, desired).CreateObject()
	if apierrors.IsAlreadyExists(err) {
		err = m.editClusterRoleBinding(ctx, rbutils.ComposeClusterRoleBinding(username, m.SystemNamespace, role))
	}
	if err != nil {
		return common.Upstream(common.CodeClusterRoleBindingCreate, stageClusterRoleBinding,
			fmt.Errorf("failed to create cluster role binding %q: %w", desired.Name, err))
	}
	metrics.ObserveRBACMutation("ClusterRoleBinding", "create")
	logger.Info("successfully granted cluster role")

	return nil
}

// editClusterRoleBinding makes an existing ClusterRoleBinding match desired. The
// role reference of a binding is immutable, so a different role means recreating it.
func (m *Manager) editClusterRoleBinding(ctx context.Context, desired *rbacv1.ClusterRoleBinding) error {
	current, err := objectcontext.New(ctx, m.Client, client.ObjectKeyFromObject(desired), &rbacv1.ClusterRoleBinding{})
	if err != nil {
		return err
	}

	if current.IsPresent() && current.Object.(*rbacv1.ClusterRoleBinding).RoleRef != desired.RoleRef {
		if err := current.DeleteObject(); err != nil {
			return err
		}
	}

	return current.EnsureUpsert(desired, clusterRoleBindingUnchanged)
}

func clusterRoleBindingUnchanged(current, desired client.Object) bool {
	currentCRB := current.(*rbacv1.ClusterRoleBinding)
	desiredCRB := desired.(*rbacv1.ClusterRoleBinding)
	for _, subject := range desiredCRB.Subjects {
		if !rbutils.IsSubjectInSubjects(currentCRB.Subjects, subject) {
			return false
		}
	}
	return len(currentCRB.Subjects) == len(desiredCRB.Subjects) &&
		labelsContain(currentCRB.Labels, desiredCRB.Labels)
}

func labelsContain(labels, subset map[string]string) bool {
	for k, v := range subset {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// ListClusterRoles returns the names of every ClusterRole in the cluster.
func (m *Manager) ListClusterRoles(ctx context.Context) ([]string, error) {
	list, err := objectcontext.NewList(ctx, m.Client, &rbacv1.ClusterRoleList{})
	if err != nil {
		return nil, common.Upstream(common.CodeClusterRoleBindingGet, "clusterrole", err)
	}

	var names []string
	for _, cr := range list.Objects.(*rbacv1.ClusterRoleList).Items {
		names = append(names, cr.Name)
	}
	slices.Sort(names)

	return names, nil
}

// isManaged returns true if a binding carries an ownership label or a name that
// invert recognizes.
func isManaged(obj client.Object, invert func(name string) (string, bool)) bool {
	if _, ok := obj.GetLabels()[zcpv1.UsernameLabel]; ok {
		return true
	}
	_, ok := invert(obj.GetName())
	return ok
}
