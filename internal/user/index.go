package user

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/naming"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ownerIndex groups objects by the user they belong to. Objects carrying the
// ownership label are keyed by its value. Objects without it are keyed by the
// identity recovered from their derived name.
type ownerIndex[T any] struct {
	byLabel map[string][]T
	byName  map[string][]T
	invert  func(name string) (string, bool)
	derive  func(username string) string
}

func newOwnerIndex[T any](invert func(string) (string, bool), derive func(string) string) *ownerIndex[T] {
	return &ownerIndex[T]{
		byLabel: map[string][]T{},
		byName:  map[string][]T{},
		invert:  invert,
		derive:  derive,
	}
}

func (ix *ownerIndex[T]) add(meta metav1.Object, item T) {
	if value, ok := meta.GetLabels()[zcpv1.UsernameLabel]; ok {
		ix.byLabel[value] = append(ix.byLabel[value], item)
		return
	}
	if owner, ok := ix.invert(meta.GetName()); ok {
		ix.byName[owner] = append(ix.byName[owner], item)
	}
}

func (ix *ownerIndex[T]) lookup(username string) []T {
	items := ix.byLabel[naming.LabelValue(username)]
	if owner, ok := ix.invert(ix.derive(username)); ok {
		items = append(slices.Clone(items), ix.byName[owner]...)
	}
	return items
}

func roleBindingIndex(rbs []rbacv1.RoleBinding) *ownerIndex[rbacv1.RoleBinding] {
	ix := newOwnerIndex[rbacv1.RoleBinding](naming.UsernameFromRoleBindingName, naming.RoleBindingName)
	for i := range rbs {
		ix.add(&rbs[i], rbs[i])
	}
	return ix
}

func clusterRoleBindingIndex(crbs []rbacv1.ClusterRoleBinding) *ownerIndex[rbacv1.ClusterRoleBinding] {
	ix := newOwnerIndex[rbacv1.ClusterRoleBinding](naming.UsernameFromClusterRoleBindingName, naming.ClusterRoleBindingName)
	for i := range crbs {
		ix.add(&crbs[i], crbs[i])
	}
	return ix
}

// clusterRoleOf returns the role of the single ClusterRoleBinding in crbs.
func clusterRoleOf(username string, crbs []rbacv1.ClusterRoleBinding) (zcpv1.ClusterRole, error) {
	switch len(crbs) {
	case 0:
		return zcpv1.NoRole, nil
	case 1:
		return zcpv1.ClusterRole(crbs[0].RoleRef.Name), nil
	default:
		return "", common.NewError(common.CodeMultipleBindings, common.KindMultipleActiveBindings, "clusterrolebinding",
			fmt.Errorf("user %q has %d cluster role bindings, there should be only one", username, len(crbs)))
	}
}

// namespacesOf returns the sorted, distinct namespaces of rbs.
func namespacesOf(rbs []rbacv1.RoleBinding) []string {
	namespaces := make([]string, 0, len(rbs))
	for _, rb := range rbs {
		namespaces = append(namespaces, rb.Namespace)
	}
	slices.Sort(namespaces)
	return slices.Compact(namespaces)
}

// ListUsersWithUsage returns the identity provider users matching keyword with
// their cluster role and the namespaces they are bound in. Users without any
// cluster objects are returned with empty usage.
func (s *Service) ListUsersWithUsage(ctx context.Context, keyword string) ([]zcpv1.User, error) {
	ctx = s.logger(ctx)
	logger := log.FromContext(ctx)

	identities, err := s.Provider.ListUsers(ctx, keyword)
	if err != nil {
		return nil, identityError(common.CodeUserList, "identity", err)
	}

	rbs, err := s.RBAC.AllRoleBindings(ctx)
	if err != nil {
		return nil, err
	}
	crbs, err := s.RBAC.AllClusterRoleBindings(ctx)
	if err != nil {
		return nil, err
	}
	rbIndex := roleBindingIndex(rbs)
	crbIndex := clusterRoleBindingIndex(crbs)

	users := make([]zcpv1.User, 0, len(identities))
	for _, identityUser := range identities {
		role, err := clusterRoleOf(identityUser.Username, crbIndex.lookup(identityUser.Username))
		if err != nil {
			return nil, err
		}
		namespaces := namespacesOf(rbIndex.lookup(identityUser.Username))
		metrics.ObserveUserNamespaces(identityUser.Username, len(namespaces))

		users = append(users, zcpv1.User{
			IdentityUser:  identityUser,
			ClusterRole:   role,
			Namespaces:    namespaces,
			UsedNamespace: len(namespaces),
		})
	}
	logger.Info("listed users", "keyword", keyword, "count", len(users))

	return users, nil
}

// ListNamespaceUsers returns the users bound in a namespace with the role each
// one holds there. RoleBindings whose owner is unknown to the identity provider
// are skipped.
func (s *Service) ListNamespaceUsers(ctx context.Context, namespace string) ([]zcpv1.User, error) {
	ctx = s.logger(ctx, "namespace", namespace)
	logger := log.FromContext(ctx)

	rbs, err := s.RBAC.NamespaceRoleBindings(ctx, namespace)
	if err != nil {
		return nil, err
	}
	if len(rbs) == 0 {
		return []zcpv1.User{}, nil
	}

	identities, err := s.Provider.ListUsers(ctx, "")
	if err != nil {
		return nil, identityError(common.CodeNamespaceUsers, "identity", err)
	}
	crbs, err := s.RBAC.AllClusterRoleBindings(ctx)
	if err != nil {
		return nil, err
	}
	rbIndex := roleBindingIndex(rbs)
	crbIndex := clusterRoleBindingIndex(crbs)

	users := []zcpv1.User{}
	matched := 0
	for _, identityUser := range identities {
		bindings := rbIndex.lookup(identityUser.Username)
		if len(bindings) == 0 {
			continue
		}
		matched += len(bindings)

		role, err := clusterRoleOf(identityUser.Username, crbIndex.lookup(identityUser.Username))
		if err != nil {
			return nil, err
		}
		users = append(users, zcpv1.User{
			IdentityUser:   identityUser,
			ClusterRole:    role,
			NamespacedRole: zcpv1.ClusterRole(bindings[0].RoleRef.Name),
			Namespaces:     []string{namespace},
			UsedNamespace:  1,
		})
	}
	if skipped := len(rbs) - matched; skipped > 0 {
		logger.Info("skipped role bindings without an identity provider user", "count", skipped)
	}
	slices.SortFunc(users, func(a, b zcpv1.User) int {
		return cmp.Compare(a.Username, b.Username)
	})

	return users, nil
}
