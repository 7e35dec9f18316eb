package namespace

import (
	"context"
	"errors"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/quota"
	"github.com/yanghoon/zcp-iam/internal/rolebinding"
	. "github.com/yanghoon/zcp-iam/pkg/testutils"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const systemNamespace = "zcp-system"

func newService(c client.Client) *Service {
	return NewService(c, rolebinding.NewManager(c, systemNamespace))
}

var _ = Describe("Namespace Service", func() {
	ctx := context.Background()
	var c client.Client
	var s *Service

	ns := "team-a"
	rqKey := client.ObjectKey{Namespace: ns, Name: naming.ResourceQuotaName(ns)}
	lrKey := client.ObjectKey{Namespace: ns, Name: naming.LimitRangeName(ns)}

	desired := zcpv1.NamespaceResource{
		Namespace: ns,
		ResourceQuota: zcpv1.ResourceQuotaSpec{
			CPULimits:    zcpv1.Cores(4),
			MemoryLimits: zcpv1.Gibibytes(8),
			Pods:         ptr.To[int64](20),
		},
		LimitRange: zcpv1.LimitRangeSpec{
			CPUDefault:    zcpv1.MilliCores(500),
			MemoryDefault: zcpv1.Mebibytes(512),
		},
	}

	BeforeEach(func() {
		c = NewFakeClient()
		s = newService(c)
	})

	Context("reconciliation", func() {
		It("should create the namespace, quota and limit range", func() {
			Expect(s.ReconcileNamespace(ctx, desired)).To(Succeed())

			namespace := &corev1.Namespace{}
			ObjectShouldExist(c, client.ObjectKey{Name: ns}, namespace)
			Expect(namespace.Labels).To(HaveKeyWithValue(zcpv1.ManagedByLabel, zcpv1.ManagedBy))
			Expect(namespace.Spec.Finalizers).To(ContainElement(corev1.FinalizerKubernetes))

			ObjectShouldExist(c, rqKey, &corev1.ResourceQuota{})
			ObjectShouldExist(c, lrKey, &corev1.LimitRange{})
		})

		It("should be idempotent", func() {
			Expect(s.ReconcileNamespace(ctx, desired)).To(Succeed())
			rq := &corev1.ResourceQuota{}
			ObjectShouldExist(c, rqKey, rq)
			version := rq.ResourceVersion

			Expect(s.ReconcileNamespace(ctx, desired)).To(Succeed())
			ObjectShouldExist(c, rqKey, rq)
			Expect(rq.ResourceVersion).To(Equal(version))
			Expect(CountObjects(c, &corev1.ResourceQuotaList{}, client.InNamespace(ns))).To(Equal(1))
			Expect(CountObjects(c, &corev1.LimitRangeList{}, client.InNamespace(ns))).To(Equal(1))
		})

		It("should leave an existing namespace untouched", func() {
			c = NewFakeClient(ComposeNamespace(ns, map[string]string{"owner": "someone"}))
			s = newService(c)

			Expect(s.ReconcileNamespace(ctx, desired)).To(Succeed())
			namespace := &corev1.Namespace{}
			ObjectShouldExist(c, client.ObjectKey{Name: ns}, namespace)
			Expect(namespace.Labels).To(Equal(map[string]string{"owner": "someone"}))
		})

		It("should delete the quota and limit range when nothing is desired", func() {
			Expect(s.ReconcileNamespace(ctx, desired)).To(Succeed())

			Expect(s.ReconcileNamespace(ctx, zcpv1.NamespaceResource{Namespace: ns})).To(Succeed())
			ObjectShouldNotExist(c, rqKey, &corev1.ResourceQuota{})
			ObjectShouldNotExist(c, lrKey, &corev1.LimitRange{})
			ObjectShouldExist(c, client.ObjectKey{Name: ns}, &corev1.Namespace{})
		})

		It("should report the failed stage and the last completed one", func() {
			c = NewFailingFakeClient(interceptor.Funcs{
				Create: func(ctx context.Context, cl client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
					if _, ok := obj.(*corev1.LimitRange); ok {
						return errors.New("injected create failure")
					}
					return cl.Create(ctx, obj, opts...)
				},
			})
			s = newService(c)

			err := s.ReconcileNamespace(ctx, desired)
			var stageErr *common.Error
			Expect(errors.As(err, &stageErr)).To(BeTrue())
			Expect(stageErr.Stage).To(Equal(zcpv1.StageLimitRange))
			Expect(stageErr.Completed).To(Equal(zcpv1.StageResourceQuota))
			Expect(stageErr.Kind).To(Equal(common.KindUpstreamFailure))

			ObjectShouldExist(c, rqKey, &corev1.ResourceQuota{})
		})

		It("should reject invalid namespace names", func() {
			err := s.ReconcileNamespace(ctx, zcpv1.NamespaceResource{Namespace: "Team_A"})
			Expect(common.IsKind(err, common.KindInvalidArgument)).To(BeTrue())
		})
	})

	Context("reading", func() {
		It("should return translated hard and used dimensions", func() {
			rq := quota.ComposeResourceQuota(ns, corev1.ResourceList{
				corev1.ResourceLimitsCPU:    resource.MustParse("4"),
				corev1.ResourceLimitsMemory: resource.MustParse("1024Mi"),
			})
			rq.Status.Used = corev1.ResourceList{
				corev1.ResourceLimitsCPU:    resource.MustParse("250m"),
				corev1.ResourceLimitsMemory: resource.MustParse("300Mi"),
			}
			c = NewFakeClient(ComposeNamespace(ns, nil), rq)
			s = newService(c)

			detail, err := s.GetNamespaceResourceDetail(ctx, ns)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Hard.CPULimits).To(Equal(zcpv1.Cores(4)))
			Expect(detail.Hard.MemoryLimits).To(Equal(zcpv1.Gibibytes(1)))
			Expect(detail.Used.CPULimits).To(Equal(zcpv1.MilliCores(250)))
			Expect(detail.Used.MemoryLimits).To(Equal(zcpv1.Mebibytes(300)))
			Expect(detail.LimitRange.IsEmpty()).To(BeTrue())
		})

		It("should return an empty detail for a namespace without managed objects", func() {
			c = NewFakeClient(ComposeNamespace(ns, nil))
			s = newService(c)

			detail, err := s.GetNamespaceResourceDetail(ctx, ns)
			Expect(err).NotTo(HaveOccurred())
			Expect(detail.Hard.IsEmpty()).To(BeTrue())
		})

		It("should report missing namespaces", func() {
			_, err := s.GetNamespaceResourceDetail(ctx, "missing")
			Expect(common.IsKind(err, common.KindNotFound)).To(BeTrue())
		})

		It("should list namespaces with their user counts", func() {
			c = NewFakeClient(append([]client.Object{ComposeNamespace(ns, map[string]string{"env": "dev"}), ComposeNamespace("team-b", nil)},
				clusterRoles()...)...)
			s = newService(c)
			Expect(s.RBAC.CreateRoleBinding(ctx, ns, "alice", zcpv1.Edit)).To(Succeed())
			Expect(s.RBAC.CreateRoleBinding(ctx, ns, "bob", zcpv1.View)).To(Succeed())

			summaries, err := s.ListNamespaces(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summaries).To(HaveLen(2))
			for _, summary := range summaries {
				Expect(summary.Status).To(Equal(zcpv1.StatusActive))
				if summary.Name == ns {
					Expect(summary.UserCount).To(Equal(2))
					Expect(summary.Labels).To(Equal([]string{"env=dev"}))
				} else {
					Expect(summary.UserCount).To(BeZero())
				}
			}
		})

		It("should delete a namespace", func() {
			c = NewFakeClient(ComposeNamespace(ns, nil))
			s = newService(c)

			Expect(s.DeleteNamespace(ctx, ns)).To(Succeed())
			ObjectShouldNotExist(c, client.ObjectKey{Name: ns}, &corev1.Namespace{})

			Expect(s.DeleteNamespace(ctx, ns)).To(Succeed())
		})

		It("should refuse to delete the system namespace", func() {
			err := s.DeleteNamespace(ctx, systemNamespace)
			Expect(common.IsKind(err, common.KindInvalidArgument)).To(BeTrue())
		})
	})

	Context("labels", func() {
		BeforeEach(func() {
			c = NewFakeClient(ComposeNamespace(ns, map[string]string{"team": "x"}), ComposeNamespace("team-b", map[string]string{"team": "y"}))
			s = newService(c)
		})

		It("should add and remove labels", func() {
			Expect(s.AddLabel(ctx, ns, "env=prod")).To(Succeed())
			Expect(s.Labels(ctx, ns)).To(Equal([]string{"env=prod", "team=x"}))

			Expect(s.RemoveLabel(ctx, ns, "team=x")).To(Succeed())
			Expect(s.Labels(ctx, ns)).To(Equal([]string{"env=prod"}))
		})

		It("should reject malformed labels and leave the namespace unchanged", func() {
			err := s.AddLabel(ctx, ns, "badformat")
			Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue())
			Expect(s.Labels(ctx, ns)).To(Equal([]string{"team=x"}))
		})

		It("should keep a label when removing a different value", func() {
			Expect(s.RemoveLabel(ctx, ns, "team=other")).To(Succeed())
			Expect(s.Labels(ctx, ns)).To(ContainElement("team=x"))
		})

		It("should refuse to edit reserved labels", func() {
			err := s.AddLabel(ctx, ns, zcpv1.ManagedByLabel+"=someone")
			Expect(common.IsKind(err, common.KindInvalidLabelFormat)).To(BeTrue())
			Expect(s.Labels(ctx, ns)).To(Equal([]string{"team=x"}))
		})

		It("should reject labels on missing namespaces", func() {
			err := s.AddLabel(ctx, "missing", "env=prod")
			Expect(common.IsKind(err, common.KindNotFound)).To(BeTrue())
		})

		It("should list every distinct label", func() {
			Expect(s.AddLabel(ctx, "team-b", "team=x")).To(Succeed())
			Expect(s.AllLabels(ctx)).To(Equal([]string{"team=x"}))
		})
	})
})

func clusterRoles() []client.Object {
	var objects []client.Object
	for _, cr := range ComposeClusterRoles() {
		objects = append(objects, cr)
	}
	return objects
}
