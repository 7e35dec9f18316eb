package rbutils

import (
	"slices"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/naming"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ServiceAccountSubject returns a subject pointing at a ServiceAccount.
func ServiceAccountSubject(name, namespace string) rbacv1.Subject {
	return rbacv1.Subject{
		Kind:      zcpv1.ServiceAccountKind,
		Name:      name,
		Namespace: namespace,
	}
}

// ClusterRoleRef returns a reference to a ClusterRole.
func ClusterRoleRef(role zcpv1.ClusterRole) rbacv1.RoleRef {
	return rbacv1.RoleRef{
		APIGroup: rbacv1.GroupName,
		Kind:     zcpv1.ClusterRoleKind,
		Name:     role.String(),
	}
}

// IsSubjectInSubjects returns whether a subject is in a slice of subjects.
func IsSubjectInSubjects(subjects []rbacv1.Subject, subjectToFind rbacv1.Subject) bool {
	return slices.ContainsFunc(subjects, func(subject rbacv1.Subject) bool {
		return subjectsEqual(subject, subjectToFind)
	})
}

// subjectsEqual returns true if two subjects are equal and false otherwise.
func subjectsEqual(subject1 rbacv1.Subject, subject2 rbacv1.Subject) bool {
	return subject1.Name == subject2.Name && subject1.Kind == subject2.Kind &&
		subject1.APIGroup == subject2.APIGroup && subject1.Namespace == subject2.Namespace
}

// Compose returns the RoleBinding of a user in a namespace.
func Compose(username, namespace, saNamespace string, role zcpv1.ClusterRole) *rbacv1.RoleBinding {
	return &rbacv1.RoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:      naming.RoleBindingName(username),
			Namespace: namespace,
			Labels:    naming.SystemUsernameLabels(username),
		},
		Subjects: []rbacv1.Subject{ServiceAccountSubject(naming.ServiceAccountName(username), saNamespace)},
		RoleRef:  ClusterRoleRef(role),
	}
}

// ComposeClusterRoleBinding returns the ClusterRoleBinding of a user.
func ComposeClusterRoleBinding(username, saNamespace string, role zcpv1.ClusterRole) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:   naming.ClusterRoleBindingName(username),
			Labels: naming.SystemUsernameLabels(username),
		},
		Subjects: []rbacv1.Subject{ServiceAccountSubject(naming.ServiceAccountName(username), saNamespace)},
		RoleRef:  ClusterRoleRef(role),
	}
}

// ComposeServiceAccount returns the ServiceAccount of a user.
func ComposeServiceAccount(username, namespace string) *corev1.ServiceAccount {
	return &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      naming.ServiceAccountName(username),
			Namespace: namespace,
			Labels:    naming.SystemUsernameLabels(username),
		},
	}
}

// IsOwnedBy returns true if a binding carries the ownership label of username, or
// has no ownership label and the name derived from username.
func IsOwnedBy(meta metav1.Object, username, derivedName string) bool {
	if value, ok := meta.GetLabels()[zcpv1.UsernameLabel]; ok {
		return value == naming.LabelValue(username)
	}
	return meta.GetName() == derivedName
}
