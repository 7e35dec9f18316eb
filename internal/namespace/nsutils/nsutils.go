package nsutils

import (
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/naming"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ComposeNamespace returns a Namespace object carrying the system labels and the
// standard finalizer.
func ComposeNamespace(name string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: naming.SystemLabels(),
		},
		Spec: corev1.NamespaceSpec{
			Finalizers: []corev1.FinalizerName{zcpv1.NamespaceFinalizer},
		},
	}
}

// Status returns the listing status of a namespace.
func Status(namespace *corev1.Namespace) string {
	if common.DeletionTimeStampExists(namespace) || namespace.Status.Phase == corev1.NamespaceTerminating {
		return zcpv1.StatusInactive
	}
	return zcpv1.StatusActive
}

// IsManaged returns true if the namespace was created by this module.
func IsManaged(namespace *corev1.Namespace) bool {
	return namespace.Labels[zcpv1.ManagedByLabel] == zcpv1.ManagedBy
}
