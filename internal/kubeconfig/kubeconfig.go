package kubeconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	stageTokenSecret = "tokensecret"
	pollInterval     = 500 * time.Millisecond
)

// Issuer renders kubeconfigs that authenticate as a user's ServiceAccount.
type Issuer struct {
	Client client.Client
	Config *config.Config
}

func NewIssuer(c client.Client, cfg *config.Config) *Issuer {
	return &Issuer{Client: c, Config: cfg}
}

// ComposeTokenSecret returns the token Secret requested for the ServiceAccount of username.
func ComposeTokenSecret(username, namespace string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:        naming.TokenSecretName(username),
			Namespace:   namespace,
			Labels:      naming.SystemUsernameLabels(username),
			Annotations: map[string]string{corev1.ServiceAccountNameKey: naming.ServiceAccountName(username)},
		},
		Type: corev1.SecretTypeServiceAccountToken,
	}
}

// EnsureTokenSecret creates the token Secret of username if it does not exist
// and waits until the token controller has populated it.
func (i *Issuer) EnsureTokenSecret(ctx context.Context, username string) (*corev1.Secret, error) {
	logger := log.FromContext(ctx).WithName("kubeconfig").WithValues("username", username)

	secretObject := objectcontext.Compose(ctx, i.Client, ComposeTokenSecret(username, i.Config.SystemNamespace))
	if err := secretObject.EnsureCreate(); err != nil {
		return nil, common.Upstream(common.CodeKubeConfig, stageTokenSecret,
			fmt.Errorf("failed to create token secret %q: %w", secretObject.Name(), err))
	}

	secret := &corev1.Secret{}
	err := wait.PollUntilContextTimeout(ctx, pollInterval, i.Config.TokenTimeout, true, func(ctx context.Context) (bool, error) {
		if err := i.Client.Get(ctx, secretObject.Key(), secret); err != nil {
			return false, err
		}
		return len(secret.Data[corev1.ServiceAccountTokenKey]) > 0 && len(secret.Data[corev1.ServiceAccountRootCAKey]) > 0, nil
	})
	if err != nil {
		logger.Error(err, "token secret was not populated", "secret", secretObject.Name())
		return nil, common.Upstream(common.CodeKubeConfig, stageTokenSecret,
			fmt.Errorf("token secret %q was not populated: %w", secretObject.Name(), err))
	}

	return secret, nil
}

// KubeConfig returns a kubeconfig for username whose user entry is named after
// email and whose context defaults to namespace.
func (i *Issuer) KubeConfig(ctx context.Context, username, email, namespace string) (*clientcmdapi.Config, error) {
	secret, err := i.EnsureTokenSecret(ctx, username)
	if err != nil {
		return nil, err
	}

	return Compose(i.Config, email, namespace, secret.Data[corev1.ServiceAccountRootCAKey], secret.Data[corev1.ServiceAccountTokenKey]), nil
}

// Compose builds a kubeconfig with a single cluster, user and context.
func Compose(cfg *config.Config, user, namespace string, ca, token []byte) *clientcmdapi.Config {
	kubeconfig := clientcmdapi.NewConfig()
	kubeconfig.Clusters[cfg.ClusterName] = &clientcmdapi.Cluster{
		Server:                   cfg.APIServerEndpoint,
		CertificateAuthorityData: ca,
	}
	kubeconfig.AuthInfos[user] = &clientcmdapi.AuthInfo{
		Token: string(token),
	}
	kubeconfig.Contexts[cfg.ContextName] = &clientcmdapi.Context{
		Cluster:   cfg.ClusterName,
		AuthInfo:  user,
		Namespace: namespace,
	}
	kubeconfig.CurrentContext = cfg.ContextName

	return kubeconfig
}

// Marshal serializes kubeconfig as YAML.
func Marshal(kubeconfig *clientcmdapi.Config) ([]byte, error) {
	return clientcmd.Write(*kubeconfig)
}
