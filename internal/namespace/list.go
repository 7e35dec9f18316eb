package namespace

import (
	"context"
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/namespace/nsutils"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

func errNamespaceNotFound(name string) error {
	return fmt.Errorf("namespace %q not found", name)
}

// GetNamespace returns a namespace or a NotFound error.
func (s *Service) GetNamespace(ctx context.Context, name string) (*corev1.Namespace, error) {
	nsObject, err := s.namespaceObject(ctx, name)
	if err != nil {
		return nil, err
	}

	return nsObject.Object.(*corev1.Namespace), nil
}

// ListNamespaces returns every namespace with its status, labels and the number
// of users bound in it.
func (s *Service) ListNamespaces(ctx context.Context) ([]zcpv1.NamespaceSummary, error) {
	list, err := objectcontext.NewList(ctx, s.Client, &corev1.NamespaceList{})
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceList, "", err)
	}

	rbs, err := s.RBAC.AllRoleBindings(ctx)
	if err != nil {
		return nil, err
	}
	users := map[string]int{}
	for _, rb := range rbs {
		users[rb.Namespace]++
	}

	items := list.Objects.(*corev1.NamespaceList).Items
	summaries := make([]zcpv1.NamespaceSummary, 0, len(items))
	for i := range items {
		summaries = append(summaries, zcpv1.NamespaceSummary{
			Name:              items[i].Name,
			Status:            nsutils.Status(&items[i]),
			Labels:            naming.LabelStrings(items[i].Labels),
			UserCount:         users[items[i].Name],
			CreationTimestamp: items[i].CreationTimestamp,
		})
	}

	return summaries, nil
}

// DeleteNamespace deletes a namespace. Its ResourceQuota, LimitRange and
// RoleBindings go with it. Deleting a missing namespace succeeds. The system
// namespace holding user ServiceAccounts cannot be deleted.
func (s *Service) DeleteNamespace(ctx context.Context, name string) error {
	logger := log.FromContext(ctx).WithName("namespace").WithValues("namespace", name)

	if name == s.RBAC.SystemNamespace {
		return common.NewError(common.CodeNamespaceDelete, common.KindInvalidArgument, "",
			fmt.Errorf("namespace %q holds the user service accounts and cannot be deleted", name))
	}

	nsObject, err := objectcontext.New(ctx, s.Client, client.ObjectKey{Name: name}, &corev1.Namespace{})
	if err != nil {
		return common.Upstream(common.CodeNamespaceDelete, "", err)
	}
	if !nsObject.IsPresent() {
		logger.Info("namespace does not exist")
		return nil
	}
	if err := nsObject.EnsureDelete(); err != nil {
		return common.Upstream(common.CodeNamespaceDelete, "", fmt.Errorf("failed to delete namespace %q: %w", name, err))
	}
	metrics.ForgetNamespace(name)
	logger.Info("successfully deleted namespace")

	return nil
}
