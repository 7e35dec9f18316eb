package testutils

import (
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ComposeNamespace returns a namespace with the given labels.
func ComposeNamespace(name string, labels map[string]string) *corev1.Namespace {
	return &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: labels,
		},
		Status: corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
	}
}

// ComposeClusterRole returns an empty ClusterRole.
func ComposeClusterRole(name zcpv1.ClusterRole) *rbacv1.ClusterRole {
	return &rbacv1.ClusterRole{
		ObjectMeta: metav1.ObjectMeta{
			Name: name.String(),
		},
	}
}

// ComposeClusterRoles returns the ClusterRoles every test cluster is seeded with.
func ComposeClusterRoles() []*rbacv1.ClusterRole {
	return []*rbacv1.ClusterRole{
		ComposeClusterRole(zcpv1.ClusterAdmin),
		ComposeClusterRole(zcpv1.Admin),
		ComposeClusterRole(zcpv1.Edit),
		ComposeClusterRole(zcpv1.View),
		ComposeClusterRole(zcpv1.Member),
	}
}

// ComposeIssuedTokenSecret returns a populated ServiceAccount token Secret.
func ComposeIssuedTokenSecret(namespace, name, serviceAccount string, token, ca []byte) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Annotations: map[string]string{corev1.ServiceAccountNameKey: serviceAccount},
		},
		Type: corev1.SecretTypeServiceAccountToken,
		Data: map[string][]byte{
			corev1.ServiceAccountTokenKey:  token,
			corev1.ServiceAccountRootCAKey: ca,
		},
	}
}
