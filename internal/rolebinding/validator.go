package rolebinding

import (
	"context"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// validateBindingRequest validates the parts of a RoleBinding request that can be
// checked before touching the namespace.
func validateBindingRequest(ctx context.Context, c client.Client, namespace, username string, role zcpv1.ClusterRole) error {
	if err := common.ValidateNamespaceName(namespace); err != nil {
		return err
	}
	if err := common.ValidateUsername(username); err != nil {
		return err
	}

	return common.ValidateClusterRoleExists(ctx, c, role)
}
