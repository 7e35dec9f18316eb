package namespace

import (
	"context"
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/namespace/nsutils"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	"github.com/yanghoon/zcp-iam/internal/quota"
	"github.com/yanghoon/zcp-iam/internal/rolebinding"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Service reconciles namespaces together with their ResourceQuota and LimitRange.
type Service struct {
	Client client.Client
	RBAC   *rolebinding.Manager
}

func NewService(c client.Client, rbac *rolebinding.Manager) *Service {
	return &Service{Client: c, RBAC: rbac}
}

type stage struct {
	name string
	run  func(ctx context.Context) error
}

// ReconcileNamespace makes the cluster hold desired: the namespace is created if
// missing and left alone otherwise, then its ResourceQuota and LimitRange are
// created, replaced or deleted to match. Stages run in order and stop at the
// first failure, which reports the stage and the last completed one.
func (s *Service) ReconcileNamespace(ctx context.Context, desired zcpv1.NamespaceResource) error {
	if err := common.ValidateNamespaceName(desired.Namespace); err != nil {
		return err
	}

	logger := log.FromContext(ctx).WithName("namespace").WithValues("namespace", desired.Namespace)
	ctx = log.IntoContext(ctx, logger)
	logger.Info("reconciling namespace")

	stages := []stage{
		{zcpv1.StageNamespace, func(ctx context.Context) error {
			return s.ensureNamespace(ctx, desired.Namespace)
		}},
		{zcpv1.StageResourceQuota, func(ctx context.Context) error {
			return quota.EnsureResourceQuota(ctx, s.Client, desired.Namespace, desired.ResourceQuota)
		}},
		{zcpv1.StageLimitRange, func(ctx context.Context) error {
			return quota.EnsureLimitRange(ctx, s.Client, desired.Namespace, desired.LimitRange)
		}},
	}

	completed := ""
	for _, st := range stages {
		err := st.run(ctx)
		metrics.ObserveReconcileStage(st.name, err)
		if err != nil {
			logger.Error(err, "failed to reconcile namespace", "stage", st.name, "completed", completed)
			return common.WithStage(common.CodeNamespaceSave, st.name, completed, err)
		}
		logger.Info("successfully reconciled stage", "stage", st.name)
		completed = st.name
	}

	return nil
}

// ensureNamespace creates the namespace if it does not exist. An existing
// namespace is never modified.
func (s *Service) ensureNamespace(ctx context.Context, name string) error {
	nsObject, err := objectcontext.New(ctx, s.Client, client.ObjectKey{Name: name}, &corev1.Namespace{})
	if err != nil {
		return err
	}

	if nsObject.IsPresent() {
		if nsutils.Status(nsObject.Object.(*corev1.Namespace)) == zcpv1.StatusInactive {
			return fmt.Errorf("namespace %q is being deleted", name)
		}
		log.FromContext(ctx).Info("namespace already exists, leaving it untouched",
			"managed", nsutils.IsManaged(nsObject.Object.(*corev1.Namespace)))
		return nil
	}

	return objectcontext.Compose(ctx, s.Client, nsutils.ComposeNamespace(name)).EnsureCreate()
}
