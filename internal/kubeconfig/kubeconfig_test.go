package kubeconfig

import (
	"context"
	"time"

	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/naming"
	. "github.com/yanghoon/zcp-iam/pkg/testutils"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var _ = Describe("KubeConfig", func() {
	var (
		ctx context.Context
		cfg *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = &config.Config{
			SystemNamespace:   "zcp-system",
			APIServerEndpoint: "https://api.example.com:6443",
			ClusterName:       "zcp-cluster",
			ContextName:       "zcp-context",
			TokenTimeout:      100 * time.Millisecond,
		}
	})

	It("should render a kubeconfig from a populated token secret", func() {
		secret := ComposeIssuedTokenSecret(cfg.SystemNamespace, naming.TokenSecretName("alice"),
			naming.ServiceAccountName("alice"), []byte("token-value"), []byte("ca-data"))
		issuer := NewIssuer(NewFakeClient(secret), cfg)

		kubeconfig, err := issuer.KubeConfig(ctx, "alice", "alice@example.com", "team-a")
		Expect(err).NotTo(HaveOccurred())
		Expect(kubeconfig.CurrentContext).To(Equal("zcp-context"))
		Expect(kubeconfig.Clusters).To(HaveKey("zcp-cluster"))
		Expect(kubeconfig.Clusters["zcp-cluster"].Server).To(Equal("https://api.example.com:6443"))
		Expect(kubeconfig.Clusters["zcp-cluster"].CertificateAuthorityData).To(Equal([]byte("ca-data")))
		Expect(kubeconfig.AuthInfos["alice@example.com"].Token).To(Equal("token-value"))
		Expect(kubeconfig.Contexts["zcp-context"].Namespace).To(Equal("team-a"))
		Expect(kubeconfig.Contexts["zcp-context"].AuthInfo).To(Equal("alice@example.com"))

		data, err := Marshal(kubeconfig)
		Expect(err).NotTo(HaveOccurred())
		loaded, err := clientcmd.Load(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.CurrentContext).To(Equal("zcp-context"))
	})

	It("should request a token secret for the user's service account", func() {
		c := NewFakeClient()
		issuer := NewIssuer(c, cfg)

		_, err := issuer.EnsureTokenSecret(ctx, "bob")
		Expect(err).To(HaveOccurred())
		Expect(common.KindOf(err)).To(Equal(common.KindUpstreamFailure))

		secret := &corev1.Secret{}
		ObjectShouldExist(c, client.ObjectKey{Namespace: cfg.SystemNamespace, Name: naming.TokenSecretName("bob")}, secret)
		Expect(secret.Type).To(Equal(corev1.SecretTypeServiceAccountToken))
		Expect(secret.Annotations).To(HaveKeyWithValue(corev1.ServiceAccountNameKey, naming.ServiceAccountName("bob")))
		Expect(secret.Labels).To(Equal(naming.SystemUsernameLabels("bob")))
	})
})
