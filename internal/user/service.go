package user

import (
	"context"
	"errors"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"
	"github.com/yanghoon/zcp-iam/internal/kubeconfig"
	"github.com/yanghoon/zcp-iam/internal/rolebinding"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Service joins identity provider records with the RBAC objects that represent
// each user in the cluster.
type Service struct {
	Provider identity.Provider
	RBAC     *rolebinding.Manager
	Issuer   *kubeconfig.Issuer
	Config   *config.Config
}

func NewService(provider identity.Provider, rbac *rolebinding.Manager, issuer *kubeconfig.Issuer, cfg *config.Config) *Service {
	return &Service{Provider: provider, RBAC: rbac, Issuer: issuer, Config: cfg}
}

func (s *Service) logger(ctx context.Context, values ...any) context.Context {
	logger := log.FromContext(ctx).WithName("user").WithValues("provider", s.Provider.Name()).WithValues(values...)
	return log.IntoContext(ctx, logger)
}

// identityUser fetches a user from the identity provider.
func (s *Service) identityUser(ctx context.Context, id string) (*zcpv1.IdentityUser, error) {
	u, err := s.Provider.GetUser(ctx, id)
	if err != nil {
		return nil, identityError(common.CodeUserGet, "identity", err)
	}
	return u, nil
}

// identityError classifies an identity provider failure.
func identityError(code, stage string, err error) error {
	kind := common.KindUpstreamFailure
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		kind = common.KindNotFound
	case errors.Is(err, identity.ErrUnsupported):
		kind = common.KindUnsupported
	}
	return common.NewError(code, kind, stage, err)
}
