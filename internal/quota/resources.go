package quota

import (
	"fmt"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/quantity"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

type quantityField struct {
	name   corev1.ResourceName
	value  **zcpv1.Quantity
	memory bool
}

type countField struct {
	name  corev1.ResourceName
	value **int64
}

func quantityFields(s *zcpv1.ResourceQuotaSpec) []quantityField {
	return []quantityField{
		{corev1.ResourceRequestsCPU, &s.CPURequests, false},
		{corev1.ResourceLimitsCPU, &s.CPULimits, false},
		{corev1.ResourceRequestsMemory, &s.MemoryRequests, true},
		{corev1.ResourceLimitsMemory, &s.MemoryLimits, true},
	}
}

func countFields(s *zcpv1.ResourceQuotaSpec) []countField {
	return []countField{
		{corev1.ResourcePods, &s.Pods},
		{corev1.ResourceSecrets, &s.Secrets},
		{corev1.ResourceServices, &s.Services},
		{corev1.ResourceConfigMaps, &s.ConfigMaps},
		{corev1.ResourcePersistentVolumeClaims, &s.PersistentVolumeClaims},
		{corev1.ResourceReplicationControllers, &s.ReplicationControllers},
		{corev1.ResourceQuotas, &s.ResourceQuotas},
		{corev1.ResourceServicesLoadBalancers, &s.LoadBalancers},
		{corev1.ResourceServicesNodePorts, &s.NodePorts},
	}
}

// HardFromSpec translates every configured dimension of spec into a ResourceList.
func HardFromSpec(spec zcpv1.ResourceQuotaSpec) (corev1.ResourceList, error) {
	hard := corev1.ResourceList{}

	for _, f := range quantityFields(&spec) {
		if *f.value == nil {
			continue
		}
		q, err := toQuantity(**f.value, f.memory)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		hard[f.name] = q
	}

	for _, f := range countFields(&spec) {
		if *f.value == nil {
			continue
		}
		q, err := quantity.CountQuantity(**f.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		hard[f.name] = q
	}

	return hard, nil
}

// SpecFromResourceList translates the dimensions present in list. Resources that
// have no dimension are ignored.
func SpecFromResourceList(list corev1.ResourceList) zcpv1.ResourceQuotaSpec {
	var spec zcpv1.ResourceQuotaSpec

	for _, f := range quantityFields(&spec) {
		if q, ok := list[f.name]; ok {
			v := fromQuantity(q, f.memory)
			*f.value = &v
		}
	}

	for _, f := range countFields(&spec) {
		if q, ok := list[f.name]; ok {
			v := quantity.FromCount(q)
			*f.value = &v
		}
	}

	return spec
}

func toQuantity(q zcpv1.Quantity, memory bool) (resource.Quantity, error) {
	if memory && !q.Unit.IsMemory() || !memory && !q.Unit.IsCPU() {
		return resource.Quantity{}, fmt.Errorf("%w: unit %q does not fit", quantity.ErrInvalidQuantity, q.Unit)
	}

	return quantity.ToQuantity(q)
}

func fromQuantity(q resource.Quantity, memory bool) zcpv1.Quantity {
	if memory {
		return quantity.FromMemory(q)
	}
	return quantity.FromCPU(q)
}

// ResourceListEqual gets two ResourceLists and returns whether their specs are equal.
func ResourceListEqual(resourceListA, resourceListB corev1.ResourceList) bool {
	if len(resourceListA) != len(resourceListB) {
		return false
	}

	for key, value1 := range resourceListA {
		value2, found := resourceListB[key]
		if !found {
			return false
		}
		if value1.Cmp(value2) != 0 {
			return false
		}
	}

	return true
}
