/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ResourceQuotaSpec holds the quota dimensions a namespace can be limited on.
// A nil field means the dimension is not configured.
type ResourceQuotaSpec struct {
	CPURequests    *Quantity `json:"cpuRequests,omitempty"`
	CPULimits      *Quantity `json:"cpuLimits,omitempty"`
	MemoryRequests *Quantity `json:"memoryRequests,omitempty"`
	MemoryLimits   *Quantity `json:"memoryLimits,omitempty"`

	Pods                   *int64 `json:"pods,omitempty"`
	Secrets                *int64 `json:"secrets,omitempty"`
	Services               *int64 `json:"services,omitempty"`
	ConfigMaps             *int64 `json:"configMaps,omitempty"`
	PersistentVolumeClaims *int64 `json:"persistentVolumeClaims,omitempty"`
	ReplicationControllers *int64 `json:"replicationControllers,omitempty"`
	ResourceQuotas         *int64 `json:"resourceQuotas,omitempty"`
	LoadBalancers          *int64 `json:"loadBalancers,omitempty"`
	NodePorts              *int64 `json:"nodePorts,omitempty"`
}

// IsEmpty returns true if no dimension of the spec is configured.
func (s ResourceQuotaSpec) IsEmpty() bool {
	return s == ResourceQuotaSpec{}
}

// LimitRangeSpec holds the container defaults of a namespace.
type LimitRangeSpec struct {
	CPUDefault           *Quantity `json:"cpuDefault,omitempty"`
	CPUDefaultRequest    *Quantity `json:"cpuDefaultRequest,omitempty"`
	MemoryDefault        *Quantity `json:"memoryDefault,omitempty"`
	MemoryDefaultRequest *Quantity `json:"memoryDefaultRequest,omitempty"`
}

func (s LimitRangeSpec) IsEmpty() bool {
	return s == LimitRangeSpec{}
}

// NamespaceResource is the desired governance state of a single namespace.
type NamespaceResource struct {
	Namespace     string            `json:"namespace"`
	ResourceQuota ResourceQuotaSpec `json:"resourceQuota,omitempty"`
	LimitRange    LimitRangeSpec    `json:"limitRange,omitempty"`
}

// NamespaceResourceDetail is the observed governance state of a single namespace.
type NamespaceResourceDetail struct {
	Namespace  string            `json:"namespace"`
	Hard       ResourceQuotaSpec `json:"hard"`
	Used       ResourceQuotaSpec `json:"used"`
	LimitRange LimitRangeSpec    `json:"limitRange"`
}

// NamespaceSummary is a row of the namespace listing.
type NamespaceSummary struct {
	Name              string      `json:"name"`
	Status            string      `json:"status"`
	Labels            []string    `json:"labels,omitempty"`
	UserCount         int         `json:"userCount"`
	CreationTimestamp metav1.Time `json:"creationTimestamp"`
}
