package setup

import (
	"context"
	"fmt"

	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"
	"github.com/yanghoon/zcp-iam/internal/identity/ldap"
	"github.com/yanghoon/zcp-iam/internal/identity/zitadel"
	"github.com/yanghoon/zcp-iam/internal/kubeconfig"
	"github.com/yanghoon/zcp-iam/internal/namespace"
	"github.com/yanghoon/zcp-iam/internal/rolebinding"
	"github.com/yanghoon/zcp-iam/internal/user"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Scheme holds the built-in Kubernetes types, which are all this module manages.
var Scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(Scheme))
}

// Services are the operations exposed to callers, wired to one cluster and one
// identity provider.
type Services struct {
	RBAC       *rolebinding.Manager
	Namespaces *namespace.Service
	Users      *user.Service
}

// NewServices wires the services around c and provider.
func NewServices(c client.Client, provider identity.Provider, cfg *config.Config) *Services {
	rbac := rolebinding.NewManager(c, cfg.SystemNamespace)

	return &Services{
		RBAC:       rbac,
		Namespaces: namespace.NewService(c, rbac),
		Users:      user.NewService(provider, rbac, kubeconfig.NewIssuer(c, cfg), cfg),
	}
}

// RESTConfig returns the cluster connection settings. An empty kubeconfig file
// uses the controller-runtime loading rules.
func RESTConfig(cfg *config.Config) (*rest.Config, error) {
	if cfg.KubeconfigFile == "" {
		return ctrl.GetConfig()
	}
	return clientcmd.BuildConfigFromFlags("", cfg.KubeconfigFile)
}

// NewClient returns a cluster client using Scheme.
func NewClient(cfg *config.Config) (client.Client, error) {
	restConfig, err := RESTConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to load cluster config: %w", err)
	}

	c, err := client.New(restConfig, client.Options{Scheme: Scheme})
	if err != nil {
		return nil, fmt.Errorf("unable to create cluster client: %w", err)
	}

	return c, nil
}

// NewProvider returns the identity provider selected in cfg.
func NewProvider(ctx context.Context, cfg *config.Config) (identity.Provider, error) {
	switch cfg.IdentityProvider {
	case config.ProviderZitadel:
		return zitadel.New(ctx, cfg.Zitadel)
	case config.ProviderLDAP:
		return ldap.New(cfg.LDAP), nil
	default:
		return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider)
	}
}
