package quota

import (
	"context"
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ResourceQuota returns the managed ResourceQuota of a namespace, present or not.
// It fails if the namespace holds more than one managed ResourceQuota.
func ResourceQuota(ctx context.Context, c client.Client, namespace string) (*objectcontext.ObjectContext, error) {
	list, err := objectcontext.NewList(ctx, c, &corev1.ResourceQuotaList{},
		client.InNamespace(namespace), client.MatchingLabels(naming.SystemNamespaceLabels(namespace)))
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceResource, zcpv1.StageResourceQuota, err)
	}
	if items := list.Objects.(*corev1.ResourceQuotaList).Items; len(items) > 1 {
		return nil, common.NewError(common.CodeNamespaceResource, common.KindMultipleActiveBindings, zcpv1.StageResourceQuota,
			fmt.Errorf("found %d managed resource quotas in namespace %q", len(items), namespace))
	}

	quotaObject, err := objectcontext.New(ctx, c, client.ObjectKey{Namespace: namespace, Name: naming.ResourceQuotaName(namespace)}, &corev1.ResourceQuota{})
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceResource, zcpv1.StageResourceQuota, err)
	}

	return quotaObject, nil
}

// ComposeResourceQuota returns the managed ResourceQuota of a namespace with the given hard limits.
func ComposeResourceQuota(namespace string, hard corev1.ResourceList) *corev1.ResourceQuota {
	return &corev1.ResourceQuota{
		ObjectMeta: metav1.ObjectMeta{
			Name:      naming.ResourceQuotaName(namespace),
			Namespace: namespace,
			Labels:    naming.SystemNamespaceLabels(namespace),
		},
		Spec: corev1.ResourceQuotaSpec{
			Hard: hard,
		},
	}
}

// EnsureResourceQuota makes the managed ResourceQuota of a namespace match spec.
// An empty spec removes it.
func EnsureResourceQuota(ctx context.Context, c client.Client, namespace string, spec zcpv1.ResourceQuotaSpec) error {
	quotaObject, err := ResourceQuota(ctx, c, namespace)
	if err != nil {
		return err
	}

	if spec.IsEmpty() {
		return quotaObject.EnsureDelete()
	}

	hard, err := HardFromSpec(spec)
	if err != nil {
		return common.NewError(common.CodeNamespaceSave, common.KindInvalidArgument, zcpv1.StageResourceQuota, err)
	}

	return quotaObject.EnsureUpsert(ComposeResourceQuota(namespace, hard), resourceQuotaUnchanged)
}

func resourceQuotaUnchanged(current, desired client.Object) bool {
	return labelsContain(current.GetLabels(), desired.GetLabels()) &&
		ResourceListEqual(current.(*corev1.ResourceQuota).Spec.Hard, desired.(*corev1.ResourceQuota).Spec.Hard)
}

// GetResourceQuotaSpecs returns the hard and used dimensions of the managed
// ResourceQuota of a namespace. Both are empty if there is none.
func GetResourceQuotaSpecs(ctx context.Context, c client.Client, namespace string) (zcpv1.ResourceQuotaSpec, zcpv1.ResourceQuotaSpec, error) {
	quotaObject, err := ResourceQuota(ctx, c, namespace)
	if err != nil {
		return zcpv1.ResourceQuotaSpec{}, zcpv1.ResourceQuotaSpec{}, err
	}
	if !quotaObject.IsPresent() {
		return zcpv1.ResourceQuotaSpec{}, zcpv1.ResourceQuotaSpec{}, nil
	}

	rq := quotaObject.Object.(*corev1.ResourceQuota)
	for name, q := range rq.Spec.Hard {
		metrics.ObserveNamespaceHardResource(namespace, name.String(), q.AsApproximateFloat64())
	}
	for name, q := range rq.Status.Used {
		metrics.ObserveNamespaceUsedResource(namespace, name.String(), q.AsApproximateFloat64())
	}

	return SpecFromResourceList(rq.Spec.Hard), SpecFromResourceList(rq.Status.Used), nil
}

func labelsContain(labels, expected map[string]string) bool {
	for k, v := range expected {
		if labels[k] != v {
			return false
		}
	}
	return true
}
