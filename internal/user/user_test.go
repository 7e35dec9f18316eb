package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/go-cmp/cmp"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"
	"github.com/yanghoon/zcp-iam/internal/kubeconfig"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/rolebinding"
	"github.com/yanghoon/zcp-iam/internal/rolebinding/rbutils"
	. "github.com/yanghoon/zcp-iam/pkg/testutils"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const systemNamespace = "zcp-system"

var (
	alice = zcpv1.IdentityUser{ID: "id-alice", Username: "alice", Email: "alice@example.com", Enabled: true, DefaultNamespace: "ns1"}
	bob   = zcpv1.IdentityUser{ID: "id-bob", Username: "bob", Email: "bob@example.com", Enabled: true}
)

func seed(extra ...client.Object) []client.Object {
	objects := []client.Object{
		ComposeNamespace(systemNamespace, nil),
		ComposeNamespace("ns1", nil),
		ComposeNamespace("ns2", nil),
	}
	for _, cr := range ComposeClusterRoles() {
		objects = append(objects, cr)
	}
	return append(objects, extra...)
}

func newTestConfig() *config.Config {
	return &config.Config{
		SystemNamespace:    systemNamespace,
		DefaultClusterRole: zcpv1.Member,
		APIServerEndpoint:  "https://api.example.com:6443",
		ClusterName:        "zcp-cluster",
		ContextName:        "zcp-context",
		TokenTimeout:       100 * time.Millisecond,
	}
}

func newTestService(c client.Client, provider identity.Provider) *Service {
	cfg := newTestConfig()
	return NewService(provider, rolebinding.NewManager(c, cfg.SystemNamespace), kubeconfig.NewIssuer(c, cfg), cfg)
}

var _ = Describe("User Service", func() {
	ctx := context.Background()
	var (
		c        client.Client
		provider *MemoryProvider
		s        *Service
	)

	BeforeEach(func() {
		provider = NewMemoryProvider(alice, bob)
		c = NewFakeClient(seed(rbutils.Compose("alice", "ns1", systemNamespace, zcpv1.Edit))...)
		s = newTestService(c, provider)
	})

	Context("usage join", func() {
		It("should count the namespaces each user is bound in", func() {
			users, err := s.ListUsersWithUsage(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))

			Expect(cmp.Diff(zcpv1.User{
				IdentityUser:  alice,
				ClusterRole:   zcpv1.NoRole,
				Namespaces:    []string{"ns1"},
				UsedNamespace: 1,
			}, users[0])).To(BeEmpty())
			Expect(users[1].Username).To(Equal("bob"))
			Expect(users[1].UsedNamespace).To(Equal(0))
			Expect(users[1].ClusterRole).To(Equal(zcpv1.NoRole))
		})

		It("should match unlabelled bindings by their derived name", func() {
			legacy := &rbacv1.RoleBinding{
				ObjectMeta: metav1.ObjectMeta{Name: naming.RoleBindingName("bob"), Namespace: "ns2"},
				Subjects:   []rbacv1.Subject{rbutils.ServiceAccountSubject(naming.ServiceAccountName("bob"), systemNamespace)},
				RoleRef:    rbutils.ClusterRoleRef(zcpv1.View),
			}
			Expect(c.Create(ctx, legacy)).To(Succeed())
			Expect(s.RBAC.GrantClusterRole(ctx, "bob", zcpv1.Admin)).To(Succeed())

			users, err := s.ListUsersWithUsage(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].UsedNamespace).To(Equal(1))
			Expect(users[0].ClusterRole).To(Equal(zcpv1.Admin))
		})

		It("should list the users of a namespace with their role there", func() {
			users, err := s.ListNamespaceUsers(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].Username).To(Equal("alice"))
			Expect(users[0].NamespacedRole).To(Equal(zcpv1.Edit))

			users, err = s.ListNamespaceUsers(ctx, "ns2")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(BeEmpty())
		})

		It("should skip bindings of users unknown to the identity provider", func() {
			Expect(c.Create(ctx, rbutils.Compose("ghost", "ns1", systemNamespace, zcpv1.View))).To(Succeed())

			users, err := s.ListNamespaceUsers(ctx, "ns1")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
		})

		It("should surface identity provider failures", func() {
			provider.Errors["ListUsers"] = errors.New("provider down")
			_, err := s.ListUsersWithUsage(ctx, "")
			Expect(common.KindOf(err)).To(Equal(common.KindUpstreamFailure))
			var e *common.Error
			Expect(errors.As(err, &e)).To(BeTrue())
			Expect(e.Code).To(Equal(common.CodeUserList))
		})
	})

	Context("user lifecycle", func() {
		It("should create the service account, the cluster role and the identity record", func() {
			id, err := s.CreateUser(ctx, zcpv1.User{IdentityUser: zcpv1.IdentityUser{Username: "carol", Email: "carol@example.com"}})
			Expect(err).NotTo(HaveOccurred())

			ObjectShouldExist(c, client.ObjectKey{Namespace: systemNamespace, Name: naming.ServiceAccountName("carol")}, &corev1.ServiceAccount{})
			crb := &rbacv1.ClusterRoleBinding{}
			ObjectShouldExist(c, client.ObjectKey{Name: naming.ClusterRoleBindingName("carol")}, crb)
			Expect(crb.RoleRef.Name).To(Equal(zcpv1.Member.String()))

			u, err := s.GetUser(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Username).To(Equal("carol"))
			Expect(u.ClusterRole).To(Equal(zcpv1.Member))
		})

		It("should report missing users as not found", func() {
			_, err := s.GetUser(ctx, "missing")
			Expect(common.IsKind(err, common.KindNotFound)).To(BeTrue())
		})

		It("should refuse users with more than one cluster role binding", func() {
			first := rbutils.ComposeClusterRoleBinding("bob", systemNamespace, zcpv1.Edit)
			second := rbutils.ComposeClusterRoleBinding("bob", systemNamespace, zcpv1.View)
			second.Name = "another-bob"
			Expect(c.Create(ctx, first)).To(Succeed())
			Expect(c.Create(ctx, second)).To(Succeed())

			_, err := s.GetUser(ctx, bob.ID)
			Expect(common.IsKind(err, common.KindMultipleActiveBindings)).To(BeTrue())
			_, err = s.ListUsersWithUsage(ctx, "")
			Expect(common.IsKind(err, common.KindMultipleActiveBindings)).To(BeTrue())
		})

		It("should change the cluster role of a user", func() {
			Expect(s.UpdateUserClusterRole(ctx, alice.ID, zcpv1.View)).To(Succeed())
			Expect(s.UpdateUserClusterRole(ctx, alice.ID, zcpv1.Admin)).To(Succeed())

			Expect(CountObjects(c, &rbacv1.ClusterRoleBindingList{}, naming.UsernameSelector("alice"))).To(Equal(1))
			u, err := s.GetUser(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ClusterRole).To(Equal(zcpv1.Admin))
		})

		It("should not allow renaming a user", func() {
			err := s.UpdateUser(ctx, alice.ID, zcpv1.IdentityUser{Username: "alicia"})
			Expect(common.IsKind(err, common.KindInvalidArgument)).To(BeTrue())

			Expect(s.UpdateUser(ctx, alice.ID, zcpv1.IdentityUser{FirstName: "Alice", Enabled: true})).To(Succeed())
			u, err := provider.GetUser(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Username).To(Equal("alice"))
			Expect(u.FirstName).To(Equal("Alice"))
		})

		It("should delete the cluster objects before the identity record", func() {
			Expect(s.UpdateUserClusterRole(ctx, alice.ID, zcpv1.Edit)).To(Succeed())

			Expect(s.DeleteUser(ctx, alice.ID)).To(Succeed())

			Expect(CountObjects(c, &rbacv1.RoleBindingList{}, naming.UsernameSelector("alice"))).To(BeZero())
			Expect(CountObjects(c, &rbacv1.ClusterRoleBindingList{}, naming.UsernameSelector("alice"))).To(BeZero())
			Expect(CountObjects(c, &corev1.ServiceAccountList{}, naming.UsernameSelector("alice"))).To(BeZero())
			_, err := provider.GetUser(ctx, alice.ID)
			Expect(errors.Is(err, identity.ErrUserNotFound)).To(BeTrue())
		})

		It("should keep the identity record when the cluster cleanup fails", func() {
			c = NewFailingFakeClient(interceptor.Funcs{
				Delete: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.DeleteOption) error {
					if _, ok := obj.(*rbacv1.RoleBinding); ok {
						return errors.New("injected delete failure")
					}
					return c.Delete(ctx, obj, opts...)
				},
			}, seed(rbutils.Compose("alice", "ns1", systemNamespace, zcpv1.Edit))...)
			s = newTestService(c, provider)

			err := s.DeleteUser(ctx, alice.ID)
			Expect(err).To(MatchError(ContainSubstring("ns1")))
			var e *common.Error
			Expect(errors.As(err, &e)).To(BeTrue())
			Expect(e.Code).To(Equal(common.CodeUserDelete))

			_, err = provider.GetUser(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("credentials", func() {
		It("should pass passwords through to the identity provider", func() {
			Expect(s.ResetPassword(ctx, alice.ID, zcpv1.Credential{Password: "t3mp", Temporary: true})).To(Succeed())
			credential, ok := provider.Password(alice.ID)
			Expect(ok).To(BeTrue())
			Expect(credential.Temporary).To(BeTrue())

			Expect(s.UpdatePassword(ctx, alice.ID, "s3cret")).To(Succeed())
			credential, _ = provider.Password(alice.ID)
			Expect(credential).To(Equal(zcpv1.Credential{Password: "s3cret"}))
		})

		It("should request required actions and manage otp", func() {
			Expect(s.ResetCredentials(ctx, alice.ID, []string{zcpv1.UpdatePasswordAction})).To(Succeed())
			Expect(provider.RequiredActions(alice.ID)).To(ConsistOf(zcpv1.UpdatePasswordAction))

			Expect(s.EnableOTP(ctx, alice.ID)).To(Succeed())
			u, _ := provider.GetUser(ctx, alice.ID)
			Expect(u.TOTP).To(BeTrue())
			Expect(s.DeleteOTP(ctx, alice.ID)).To(Succeed())
			u, _ = provider.GetUser(ctx, alice.ID)
			Expect(u.TOTP).To(BeFalse())
		})

		It("should end the sessions of a user", func() {
			Expect(provider.Sessions(alice.ID)).To(Equal(1))
			Expect(s.Logout(ctx, alice.ID)).To(Succeed())
			Expect(provider.Sessions(alice.ID)).To(BeZero())
		})

		It("should report operations the provider does not support", func() {
			provider.Errors["EnableOTP"] = identity.ErrUnsupported
			err := s.EnableOTP(ctx, alice.ID)
			Expect(common.IsKind(err, common.KindUnsupported)).To(BeTrue())
		})
	})

	Context("kubeconfig", func() {
		It("should issue a kubeconfig in the default namespace of the user", func() {
			secret := ComposeIssuedTokenSecret(systemNamespace, naming.TokenSecretName("alice"), naming.ServiceAccountName("alice"), []byte("token"), []byte("ca"))
			Expect(c.Create(ctx, secret)).To(Succeed())

			kubeconfig, err := s.KubeConfig(ctx, alice.ID, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(kubeconfig.AuthInfos).To(HaveKey("alice@example.com"))
			Expect(kubeconfig.Contexts["zcp-context"].Namespace).To(Equal("ns1"))
			ObjectShouldExist(c, client.ObjectKey{Namespace: systemNamespace, Name: naming.ServiceAccountName("alice")}, &corev1.ServiceAccount{})
		})
	})
})
