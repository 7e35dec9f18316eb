package quota

import (
	"context"
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// LimitRange returns the managed LimitRange of a namespace, present or not.
// It fails if the namespace holds more than one managed LimitRange.
func LimitRange(ctx context.Context, c client.Client, namespace string) (*objectcontext.ObjectContext, error) {
	list, err := objectcontext.NewList(ctx, c, &corev1.LimitRangeList{},
		client.InNamespace(namespace), client.MatchingLabels(naming.SystemNamespaceLabels(namespace)))
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceResource, zcpv1.StageLimitRange, err)
	}
	if items := list.Objects.(*corev1.LimitRangeList).Items; len(items) > 1 {
		return nil, common.NewError(common.CodeNamespaceResource, common.KindMultipleActiveBindings, zcpv1.StageLimitRange,
			fmt.Errorf("found %d managed limit ranges in namespace %q", len(items), namespace))
	}

	limitRangeObject, err := objectcontext.New(ctx, c, client.ObjectKey{Namespace: namespace, Name: naming.LimitRangeName(namespace)}, &corev1.LimitRange{})
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceResource, zcpv1.StageLimitRange, err)
	}

	return limitRangeObject, nil
}

// ContainerLimits translates spec into a Container LimitRangeItem.
func ContainerLimits(spec zcpv1.LimitRangeSpec) (corev1.LimitRangeItem, error) {
	item := corev1.LimitRangeItem{
		Type:           zcpv1.ContainerLimitType,
		Default:        corev1.ResourceList{},
		DefaultRequest: corev1.ResourceList{},
	}

	for _, f := range []struct {
		list   corev1.ResourceList
		name   corev1.ResourceName
		value  *zcpv1.Quantity
		memory bool
	}{
		{item.Default, corev1.ResourceCPU, spec.CPUDefault, false},
		{item.DefaultRequest, corev1.ResourceCPU, spec.CPUDefaultRequest, false},
		{item.Default, corev1.ResourceMemory, spec.MemoryDefault, true},
		{item.DefaultRequest, corev1.ResourceMemory, spec.MemoryDefaultRequest, true},
	} {
		if f.value == nil {
			continue
		}
		q, err := toQuantity(*f.value, f.memory)
		if err != nil {
			return item, fmt.Errorf("invalid default %s: %w", f.name, err)
		}
		f.list[f.name] = q
	}

	if len(item.Default) == 0 {
		item.Default = nil
	}
	if len(item.DefaultRequest) == 0 {
		item.DefaultRequest = nil
	}

	return item, nil
}

// SpecFromLimitRange translates the Container item of a LimitRange.
func SpecFromLimitRange(limitRange *corev1.LimitRange) zcpv1.LimitRangeSpec {
	var spec zcpv1.LimitRangeSpec

	for _, item := range limitRange.Spec.Limits {
		if item.Type != zcpv1.ContainerLimitType {
			continue
		}
		spec.CPUDefault = translated(item.Default, corev1.ResourceCPU, false)
		spec.CPUDefaultRequest = translated(item.DefaultRequest, corev1.ResourceCPU, false)
		spec.MemoryDefault = translated(item.Default, corev1.ResourceMemory, true)
		spec.MemoryDefaultRequest = translated(item.DefaultRequest, corev1.ResourceMemory, true)
	}

	return spec
}

func translated(list corev1.ResourceList, name corev1.ResourceName, memory bool) *zcpv1.Quantity {
	q, ok := list[name]
	if !ok {
		return nil
	}
	v := fromQuantity(q, memory)
	return &v
}

// ComposeLimitRange returns the managed LimitRange of a namespace.
func ComposeLimitRange(namespace string, limits []corev1.LimitRangeItem) *corev1.LimitRange {
	return &corev1.LimitRange{
		ObjectMeta: metav1.ObjectMeta{
			Name:      naming.LimitRangeName(namespace),
			Namespace: namespace,
			Labels:    naming.SystemNamespaceLabels(namespace),
		},
		Spec: corev1.LimitRangeSpec{
			Limits: limits,
		},
	}
}

// EnsureLimitRange makes the managed LimitRange of a namespace match spec. An
// empty spec removes it.
func EnsureLimitRange(ctx context.Context, c client.Client, namespace string, spec zcpv1.LimitRangeSpec) error {
	limitRangeObject, err := LimitRange(ctx, c, namespace)
	if err != nil {
		return err
	}

	if spec.IsEmpty() {
		return limitRangeObject.EnsureDelete()
	}

	item, err := ContainerLimits(spec)
	if err != nil {
		return common.NewError(common.CodeNamespaceSave, common.KindInvalidArgument, zcpv1.StageLimitRange, err)
	}

	return limitRangeObject.EnsureUpsert(ComposeLimitRange(namespace, []corev1.LimitRangeItem{item}), limitRangeUnchanged)
}

func limitRangeUnchanged(current, desired client.Object) bool {
	return labelsContain(current.GetLabels(), desired.GetLabels()) &&
		equality.Semantic.DeepEqual(current.(*corev1.LimitRange).Spec, desired.(*corev1.LimitRange).Spec)
}

// GetLimitRangeSpec returns the container defaults of a namespace. It is empty if
// there is no managed LimitRange.
func GetLimitRangeSpec(ctx context.Context, c client.Client, namespace string) (zcpv1.LimitRangeSpec, error) {
	limitRangeObject, err := LimitRange(ctx, c, namespace)
	if err != nil {
		return zcpv1.LimitRangeSpec{}, err
	}
	if !limitRangeObject.IsPresent() {
		return zcpv1.LimitRangeSpec{}, nil
	}

	return SpecFromLimitRange(limitRangeObject.Object.(*corev1.LimitRange)), nil
}
