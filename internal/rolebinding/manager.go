package rolebinding

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Manager maintains the ServiceAccount, ClusterRoleBinding and RoleBindings
// that represent a user inside the cluster. Every binding points at the user's
// ServiceAccount in the system namespace.
type Manager struct {
	Client          client.Client
	SystemNamespace string
}

// NewManager returns a Manager keeping ServiceAccounts in systemNamespace.
func NewManager(c client.Client, systemNamespace string) *Manager {
	return &Manager{Client: c, SystemNamespace: systemNamespace}
}

func (m *Manager) logger(ctx context.Context, username string) context.Context {
	logger := log.FromContext(ctx).WithName("rolebinding").WithValues("username", username)
	return log.IntoContext(ctx, logger)
}
