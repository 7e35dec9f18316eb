package naming

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/validation"
)

var _ = Describe("Names", func() {
	It("should derive names with fixed prefixes", func() {
		Expect(ServiceAccountName("alice")).To(Equal("zcp-system-sa-alice"))
		Expect(ClusterRoleBindingName("alice")).To(Equal("zcp-system-crb-alice"))
		Expect(RoleBindingName("alice")).To(Equal("zcp-system-rb-alice"))
		Expect(ResourceQuotaName("team-a")).To(Equal("zcp-system-rq-team-a"))
		Expect(LimitRangeName("team-a")).To(Equal("zcp-system-lr-team-a"))
		Expect(TokenSecretName("alice")).To(Equal("zcp-system-sa-alice-token"))
	})

	It("should invert names of identities that need no encoding", func() {
		for _, username := range []string{"alice", "bob-2", "x"} {
			got, ok := UsernameFromRoleBindingName(RoleBindingName(username))
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(username))

			got, ok = UsernameFromClusterRoleBindingName(ClusterRoleBindingName(username))
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(username))
		}
	})

	It("should not invert names without the prefix", func() {
		_, ok := UsernameFromRoleBindingName("admin-binding")
		Expect(ok).To(BeFalse())

		_, ok = UsernameFromRoleBindingName("zcp-system-rb-")
		Expect(ok).To(BeFalse())
	})

	It("should encode identities that are not valid names", func() {
		for _, username := range []string{"Alice", "alice@example.com", "__", strings.Repeat("a", 80)} {
			name := RoleBindingName(username)
			Expect(validation.IsDNS1123Label(name)).To(BeEmpty(), name)
			Expect(len(name)).To(BeNumerically("<=", MaxNameLength))

			got, ok := UsernameFromRoleBindingName(name)
			Expect(ok).To(BeTrue())
			Expect(got).NotTo(Equal(username))
		}
	})

	It("should not collide for identities that sanitize to the same string", func() {
		Expect(RoleBindingName("alice@example.com")).NotTo(Equal(RoleBindingName("alice.example.com")))
		Expect(RoleBindingName("Alice")).NotTo(Equal(RoleBindingName("alice")))
	})

	It("should not collide with valid names that look encoded", func() {
		encoded := strings.TrimPrefix(RoleBindingName("Bob"), "zcp-system-rb-")
		Expect(encoded).To(MatchRegexp(`^bob-[0-9a-f]{8}$`))

		Expect(RoleBindingName(encoded)).NotTo(Equal(RoleBindingName("Bob")))
		Expect(ServiceAccountName(encoded)).NotTo(Equal(ServiceAccountName("Bob")))
		Expect(ClusterRoleBindingName(encoded)).NotTo(Equal(ClusterRoleBindingName("Bob")))
		Expect(LabelValue(encoded)).NotTo(Equal(LabelValue("Bob")))
	})

	It("should encode valid names that end like a hash", func() {
		for _, username := range []string{"deadbeef", "team-0123abcd"} {
			name := RoleBindingName(username)
			Expect(name).NotTo(Equal("zcp-system-rb-" + username))
			Expect(validation.IsDNS1123Label(name)).To(BeEmpty(), name)
		}
		Expect(RoleBindingName("team-0123abcz")).To(Equal("zcp-system-rb-team-0123abcz"))
	})

	It("should be deterministic", func() {
		Expect(ServiceAccountName("alice@example.com")).To(Equal(ServiceAccountName("alice@example.com")))
	})
})
