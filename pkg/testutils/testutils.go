package testutils

import (
	"context"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

const randStringLength = 8

// NewFakeClient returns an in-memory client holding the given objects.
func NewFakeClient(objects ...client.Object) client.WithWatch {
	return fake.NewClientBuilder().WithScheme(clientgoscheme.Scheme).WithObjects(objects...).Build()
}

// NewFailingFakeClient returns an in-memory client whose calls go through funcs first.
func NewFailingFakeClient(funcs interceptor.Funcs, objects ...client.Object) client.WithWatch {
	return fake.NewClientBuilder().WithScheme(clientgoscheme.Scheme).WithObjects(objects...).WithInterceptorFuncs(funcs).Build()
}

// RandStr generates a random lowercase string.
func RandStr() string {
	return uuid.NewString()[:randStringLength]
}

// ObjectShouldExist asserts that an object with the given key exists and loads it into obj.
func ObjectShouldExist(c client.Client, key types.NamespacedName, obj client.Object) {
	ExpectWithOffset(1, c.Get(context.Background(), key, obj)).To(Succeed())
}

// ObjectShouldNotExist asserts that no object with the given key exists.
func ObjectShouldNotExist(c client.Client, key types.NamespacedName, obj client.Object) {
	err := c.Get(context.Background(), key, obj)
	ExpectWithOffset(1, apierrors.IsNotFound(err)).To(BeTrue(), "expected %s to be absent, got %v", key, err)
}

// CountObjects returns the number of objects list holds after listing with opts.
func CountObjects(c client.Client, list client.ObjectList, opts ...client.ListOption) int {
	ExpectWithOffset(1, c.List(context.Background(), list, opts...)).To(Succeed())
	items, err := meta.ExtractList(list)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return len(items)
}
