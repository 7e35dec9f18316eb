package rolebinding

import (
	"context"
	"fmt"

	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DeleteAllUserObjects removes the ServiceAccounts, ClusterRoleBindings and
// RoleBindings of a user, in that order. RoleBindings are deleted namespace by
// namespace; the first failure stops the loop and is returned as an aggregate
// naming the failed namespace, leaving later namespaces untouched.
func (m *Manager) DeleteAllUserObjects(ctx context.Context, username string) error {
	if err := common.ValidateUsername(username); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx)
	logger.Info("cleaning up user objects")

	if err := m.deleteServiceAccounts(ctx, username); err != nil {
		return fmt.Errorf("failed to delete service accounts of user %q: %w", username, err)
	}

	if _, err := m.RevokeClusterRole(ctx, username); err != nil {
		return fmt.Errorf("failed to delete cluster role bindings of user %q: %w", username, err)
	}

	rbs, err := m.UserRoleBindings(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to list role bindings of user %q: %w", username, err)
	}

	for i := range rbs {
		namespace := rbs[i].Namespace
		if err := objectcontext.Compose(ctx, m.Client, &rbs[i]).DeleteObject(); err != nil {
			remaining := make([]string, 0, len(rbs)-i-1)
			for _, rb := range rbs[i+1:] {
				remaining = append(remaining, rb.Namespace)
			}
			logger.Error(err, "stopped deleting role bindings", "namespace", namespace, "remaining", remaining)

			return utilerrors.NewAggregate([]error{common.Upstream(common.CodeRoleBindingDelete, stageRoleBinding+"/"+namespace,
				fmt.Errorf("failed to delete role binding %q of user %q in namespace %q: %w", rbs[i].Name, username, namespace, err))})
		}
		metrics.ObserveRBACMutation("RoleBinding", "delete")
	}
	metrics.ObserveUserNamespaces(username, 0)
	logger.Info("successfully deleted user objects", "roleBindings", len(rbs))

	return nil
}
