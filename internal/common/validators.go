package common

import (
	"context"
	"fmt"
	"strings"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// ValidateNamespaceName validates that name can be used as a namespace name.
func ValidateNamespaceName(name string) error {
	if errs := validation.IsDNS1123Label(name); len(errs) > 0 {
		return NewError(CodeNamespaceSave, KindInvalidArgument, "",
			fmt.Errorf("invalid namespace name %q: %s", name, strings.Join(errs, ", ")))
	}

	return nil
}

// ValidateUsername validates that a username is usable for deriving object names.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return NewError(CodeServiceAccount, KindInvalidArgument, "", fmt.Errorf("username must not be empty"))
	}

	return nil
}

// ValidateClusterRoleExists validates that a ClusterRole with the given name exists in the cluster.
func ValidateClusterRoleExists(ctx context.Context, c client.Client, role zcpv1.ClusterRole) error {
	if role == "" || role == zcpv1.NoRole {
		return NewError(CodeClusterRoleBindingCreate, KindInvalidArgument, "", fmt.Errorf("cluster role must be set"))
	}

	cr, err := objectcontext.New(ctx, c, client.ObjectKey{Name: role.String()}, &rbacv1.ClusterRole{})
	if err != nil {
		return Upstream(CodeClusterRoleBindingGet, "", fmt.Errorf("failed to get cluster role %q: %w", role, err))
	}

	if !cr.IsPresent() {
		return NewError(CodeClusterRoleBindingCreate, KindNotFound, "", fmt.Errorf("cluster role %q does not exist", role))
	}

	return nil
}
