package objectcontext

import (
	"context"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/apiutil"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// ObjectContext holds a single cluster object together with whether it was found
// in the cluster at the time it was fetched.
type ObjectContext struct {
	client.Client
	Ctx     context.Context
	Log     logr.Logger
	Object  client.Object
	present bool
}

type ObjectContextList struct {
	client.Client
	Ctx     context.Context
	Log     logr.Logger
	Objects client.ObjectList
}

// New creates an objectContext object. A missing object is not an error; the
// returned context then reports IsPresent() == false and keeps the given object
// as the desired state.
func New(ctx context.Context, Client client.Client, req types.NamespacedName, object client.Object) (*ObjectContext, error) {
	logger := log.FromContext(ctx).WithName("NewObjectContext")

	objectContext := ObjectContext{Client: Client, Object: object, Log: logger, Ctx: ctx, present: false}

	if err := Client.Get(ctx, req, object); err != nil {
		if apierrors.IsNotFound(err) {
			object.SetName(req.Name)
			object.SetNamespace(req.Namespace)
			return &objectContext, nil
		}
		logger.Error(err, "unable to identify object", "name", req.Name, "namespace", req.Namespace)
		return nil, err
	}
	objectContext.present = true
	objectContext.Object = object

	return &objectContext, nil
}

// Compose creates an objectContext for an object that was built locally and has
// not been looked up in the cluster. It reports IsPresent() == false.
func Compose(ctx context.Context, Client client.Client, object client.Object) *ObjectContext {
	logger := log.FromContext(ctx).WithName("ComposeObjectContext")
	return &ObjectContext{Client: Client, Object: object, Log: logger, Ctx: ctx, present: false}
}

// NewList creates a new objectContextList object.
func NewList(ctx context.Context, Client client.Client, objects client.ObjectList, req ...client.ListOption) (*ObjectContextList, error) {
	logger := log.FromContext(ctx).WithName("NewObjectContextList")

	objectContextList := ObjectContextList{Client: Client, Log: logger, Ctx: ctx, Objects: objects}

	if err := Client.List(ctx, objects, req...); err != nil {
		logger.Error(err, "unable to retrieve list")
		return nil, err
	}
	objectContextList.Objects = objects

	return &objectContextList, nil
}

// Name returns the object name.
func (r *ObjectContext) Name() string {
	return r.Object.GetName()
}

// Namespace returns the object namespace.
func (r *ObjectContext) Namespace() string {
	return r.Object.GetNamespace()
}

// Key returns the namespaced name of the object.
func (r *ObjectContext) Key() types.NamespacedName {
	return client.ObjectKeyFromObject(r.Object)
}

// GetKindName returns the object kind name.
func (r *ObjectContext) GetKindName() string {
	if kind := r.Object.GetObjectKind().GroupVersionKind().Kind; kind != "" {
		return kind
	}
	if scheme := r.Scheme(); scheme != nil {
		if gvk, err := apiutil.GVKForObject(r.Object, scheme); err == nil {
			return gvk.Kind
		}
	}

	return "object"
}
