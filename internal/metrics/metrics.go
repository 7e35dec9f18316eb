package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var registerOnce sync.Once

// InitializeIAMMetrics registers the relevant metrics.
func InitializeIAMMetrics() {
	registerOnce.Do(func() {
		metrics.Registry.MustRegister(
			namespaceHardResources,
			namespaceUsedResources,
			reconcileStages,
			rbacMutations,
			userNamespaces,
		)
	})
}

var (
	namespaceHardResources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zcp_namespace_hard_resources",
			Help: "Indication of the hard quantity of a namespace resource",
		}, []string{"namespace", "resource"},
	)
)

var (
	namespaceUsedResources = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zcp_namespace_used_resources",
			Help: "Indication of the used quantity of a namespace resource",
		}, []string{"namespace", "resource"},
	)
)

var (
	reconcileStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zcp_namespace_reconcile_stages_total",
			Help: "Number of namespace reconciliation stages run, by stage and result",
		}, []string{"stage", "result"},
	)
)

var (
	rbacMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zcp_rbac_mutations_total",
			Help: "Number of RBAC objects written, by kind and verb",
		}, []string{"kind", "verb"},
	)
)

var (
	userNamespaces = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zcp_user_namespaces",
			Help: "Number of namespaces a user holds a role binding in",
		}, []string{"username"},
	)
)

// ObserveNamespaceHardResource sets the hard metric as per the quantity.
func ObserveNamespaceHardResource(namespace, resource string, quantity float64) {
	namespaceHardResources.With(prometheus.Labels{
		"namespace": namespace,
		"resource":  resource,
	}).Set(quantity)
}

// ObserveNamespaceUsedResource sets the used metric as per the quantity.
func ObserveNamespaceUsedResource(namespace, resource string, quantity float64) {
	namespaceUsedResources.With(prometheus.Labels{
		"namespace": namespace,
		"resource":  resource,
	}).Set(quantity)
}

// ForgetNamespace drops every resource metric of a namespace.
func ForgetNamespace(namespace string) {
	namespaceHardResources.DeletePartialMatch(prometheus.Labels{"namespace": namespace})
	namespaceUsedResources.DeletePartialMatch(prometheus.Labels{"namespace": namespace})
}

// ObserveReconcileStage counts a finished reconciliation stage.
func ObserveReconcileStage(stage string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	reconcileStages.With(prometheus.Labels{"stage": stage, "result": result}).Inc()
}

// ObserveRBACMutation counts a write of an RBAC object.
func ObserveRBACMutation(kind, verb string) {
	rbacMutations.With(prometheus.Labels{"kind": kind, "verb": verb}).Inc()
}

// ObserveUserNamespaces sets the number of namespaces a user is bound in.
func ObserveUserNamespaces(username string, count int) {
	userNamespaces.With(prometheus.Labels{"username": username}).Set(float64(count))
}

// Push sends every registered metric to a Pushgateway under the given job name.
func Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(metrics.Registry).PushContext(ctx)
}
