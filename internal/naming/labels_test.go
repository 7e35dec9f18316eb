package naming

import (
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/validation"
)

var _ = Describe("Labels", func() {
	Context("label values", func() {
		It("should keep identities that are valid label values", func() {
			Expect(LabelValue("alice")).To(Equal("alice"))
			Expect(LabelValue("Alice.Smith")).To(Equal("Alice.Smith"))
		})

		It("should encode identities that are not valid label values", func() {
			value := LabelValue("alice@example.com")
			Expect(validation.IsValidLabelValue(value)).To(BeEmpty())
			Expect(value).NotTo(Equal(LabelValue("alice#example.com")))
		})

		It("should build owner labels", func() {
			Expect(SystemUsernameLabels("alice")).To(Equal(map[string]string{
				zcpv1.ManagedByLabel: zcpv1.ManagedBy,
				zcpv1.UsernameLabel:  "alice",
			}))
			Expect(SystemNamespaceLabels("team-a")).To(HaveKeyWithValue(zcpv1.NamespaceLabel, "team-a"))
		})
	})

	Context("label edits", func() {
		var labels map[string]string

		BeforeEach(func() {
			labels = map[string]string{"team": "x"}
		})

		It("should add a label without touching the input", func() {
			updated, err := AddLabel(labels, "env=prod")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(Equal(map[string]string{"team": "x", "env": "prod"}))
			Expect(labels).To(Equal(map[string]string{"team": "x"}))
		})

		It("should add a label to a nil map", func() {
			updated, err := AddLabel(nil, "env=prod")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(Equal(map[string]string{"env": "prod"}))
		})

		It("should reject malformed labels and leave the input unchanged", func() {
			for _, label := range []string{"badformat", "a=b=c", "", "=x", "bad key=x", "k=bad value"} {
				updated, err := AddLabel(labels, label)
				Expect(err).To(HaveOccurred(), label)
				Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue())
				Expect(updated).To(Equal(map[string]string{"team": "x"}))
			}
		})

		It("should remove a label whose value matches", func() {
			updated, err := RemoveLabel(labels, "team=x")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(BeEmpty())
			Expect(labels).To(HaveKey("team"))
		})

		It("should keep a label whose value differs", func() {
			updated, err := RemoveLabel(labels, "team=other")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(Equal(map[string]string{"team": "x"}))

			updated, err = RemoveLabel(labels, "env=prod")
			Expect(err).NotTo(HaveOccurred())
			Expect(updated).To(Equal(map[string]string{"team": "x"}))
		})

		It("should refuse to edit reserved keys", func() {
			managed := map[string]string{zcpv1.ManagedByLabel: zcpv1.ManagedBy, zcpv1.NamespaceLabel: "team-a"}
			for _, label := range []string{zcpv1.ManagedByLabel + "=other", zcpv1.NamespaceLabel + "=team-b", zcpv1.UsernameLabel + "=alice"} {
				updated, err := AddLabel(managed, label)
				Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue(), label)
				Expect(updated).To(Equal(managed))
			}

			updated, err := RemoveLabel(managed, zcpv1.ManagedByLabel+"="+zcpv1.ManagedBy)
			Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue())
			Expect(updated).To(Equal(managed))
		})

		It("should reject removing a malformed label", func() {
			_, err := RemoveLabel(labels, "team")
			Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue())
		})

		It("should list labels sorted", func() {
			Expect(LabelStrings(map[string]string{"b": "2", "a": "1"})).To(Equal([]string{"a=1", "b=2"}))
		})
	})
})
