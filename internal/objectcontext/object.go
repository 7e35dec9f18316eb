package objectcontext

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// CreateObject creates the objectContext.object in the cluster. An AlreadyExists
// response is returned to the caller.
func (r *ObjectContext) CreateObject() error {
	logger := r.Log.WithName("objectContext.CreateObject")
	if err := r.Create(r.Ctx, r.Object); err != nil {
		if apierrors.IsAlreadyExists(err) {
			logger.Info(fmt.Sprintf("%s %s already exists", r.GetKindName(), r.Name()))
			return err
		}
		logger.Error(err, fmt.Sprintf("unable to create %s %s", r.GetKindName(), r.Name()))
		return err
	}
	r.present = true
	logger.Info(fmt.Sprintf("%s %s created", r.GetKindName(), r.Name()))
	return nil
}

// UpdateObject updates the objectContext.object in the cluster.
func (r *ObjectContext) UpdateObject(update func(object client.Object, log logr.Logger) (client.Object, logr.Logger)) error {
	logger := r.Log.WithName("objectContext.UpdateObject")
	if !r.present {
		return apierrors.NewNotFound(r.groupResource(), r.Name())
	}

	r.Object, logger = update(r.Object, logger)
	if err := r.Update(r.Ctx, r.Object); err != nil {
		logger.Error(err, fmt.Sprintf("unable to update %s %s", r.GetKindName(), r.Name()))
		return err
	}
	logger.Info(fmt.Sprintf("%s %s updated", r.GetKindName(), r.Name()))
	return nil
}

// ReplaceObject overwrites the object in the cluster with desired, keeping the
// resource version of the current object.
func (r *ObjectContext) ReplaceObject(desired client.Object) error {
	logger := r.Log.WithName("objectContext.ReplaceObject")
	if !r.present {
		return apierrors.NewNotFound(r.groupResource(), r.Name())
	}

	desired.SetResourceVersion(r.Object.GetResourceVersion())
	desired.SetUID(r.Object.GetUID())
	if err := r.Update(r.Ctx, desired); err != nil {
		logger.Error(err, fmt.Sprintf("unable to replace %s %s", r.GetKindName(), r.Name()))
		return err
	}
	r.Object = desired
	logger.Info(fmt.Sprintf("%s %s replaced", r.GetKindName(), r.Name()))
	return nil
}

// DeleteObject deletes the objectContext.object from the cluster.
func (r *ObjectContext) DeleteObject() error {
	logger := r.Log.WithName("objectContext.DeleteObject")
	if err := r.Delete(r.Ctx, r.Object); err != nil {
		if apierrors.IsNotFound(err) {
			logger.Info(fmt.Sprintf("%s %s does not exist", r.GetKindName(), r.Name()))
			r.present = false
			return nil
		}
		logger.Error(err, fmt.Sprintf("unable to delete %s %s", r.GetKindName(), r.Name()))
		return err
	}
	r.present = false
	logger.Info(fmt.Sprintf("%s %s deleted", r.GetKindName(), r.Name()))
	return nil
}

// EnsureCreate creates the object if it doesn't exist. An object created
// concurrently by someone else counts as present.
func (r *ObjectContext) EnsureCreate() error {
	logger := r.Log.WithName("objectContext.EnsureCreateObject")
	if !r.IsPresent() {
		if err := r.CreateObject(); err != nil {
			if !apierrors.IsAlreadyExists(err) {
				return err
			}
			r.present = true
		}
	}

	logger.Info(fmt.Sprintf("%s %s ensured", r.GetKindName(), r.Name()))
	return nil
}

// EnsureDelete deletes the object if it exists.
func (r *ObjectContext) EnsureDelete() error {
	logger := r.Log.WithName("objectContext.EnsureDeleteObject")
	if r.IsPresent() {
		if err := r.DeleteObject(); err != nil {
			return err
		}
	}

	logger.Info(fmt.Sprintf("%s %s unensured", r.GetKindName(), r.Name()))
	return nil
}

// EnsureUpsert makes the cluster hold desired: it is created when absent and
// replaced when present. When unchanged reports that the current object already
// matches desired, nothing is written.
func (r *ObjectContext) EnsureUpsert(desired client.Object, unchanged func(current, desired client.Object) bool) error {
	logger := r.Log.WithName("objectContext.EnsureUpsertObject")
	if !r.IsPresent() {
		r.Object = desired
		return r.CreateObject()
	}

	if unchanged != nil && unchanged(r.Object, desired) {
		logger.Info(fmt.Sprintf("%s %s is up to date", r.GetKindName(), r.Name()))
		return nil
	}

	return r.ReplaceObject(desired)
}

// IsPresent checks if the objectContext.object exists the cluster.
func (r *ObjectContext) IsPresent() bool {
	return r.present
}

// forceUpdate updates the object until success or err different from conflict error.
func (r *ObjectContext) forceUpdate(ctx context.Context, update func(object client.Object, log logr.Logger) (client.Object, logr.Logger, error)) error {
	localLogger := r.Log.WithName("forceUpdateObject")
	for {
		err := r.update(ctx, update)
		if err == nil {
			return nil
		}
		if !apierrors.IsConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		if err = r.refresh(ctx); err != nil {
			if apierrors.IsNotFound(err) {
				localLogger.Info(fmt.Sprintf("can't update %s %s, does not exist", r.GetKindName(), r.Name()))
				r.present = false
			}
			return err
		}
	}
}

// update takes care of updating the object in the cluster.
func (r *ObjectContext) update(ctx context.Context, update func(object client.Object, log logr.Logger) (client.Object, logr.Logger, error)) error {
	localLogger := r.Log.WithName("UpdateObject")
	if !r.present {
		localLogger.Info(fmt.Sprintf("%s %s does not exist in cluster", r.GetKindName(), r.Name()))
		return apierrors.NewNotFound(r.groupResource(), r.Name())
	}

	var err error
	r.Object, localLogger, err = update(r.Object, localLogger)
	if err != nil {
		return err
	}
	if err = r.Update(ctx, r.Object); err != nil {
		if apierrors.IsConflict(err) {
			localLogger.Info(fmt.Sprintf("conflict while updating %s %s: %s", r.GetKindName(), r.Name(), err))
		} else {
			localLogger.Info(fmt.Sprintf("unable to update %s %s: %s", r.GetKindName(), r.Name(), err.Error()))
		}
		return err
	}
	localLogger.Info(fmt.Sprintf("%s %s updated", r.GetKindName(), r.Name()))

	return nil
}

// refresh takes care of refreshing an object.
func (r *ObjectContext) refresh(ctx context.Context) error {
	logger := r.Log.WithName("objectContext.RefreshObject")
	if err := r.Get(ctx, r.Key(), r.Object); err != nil {
		logger.Info(fmt.Sprintf("unable to refresh %s %s", r.GetKindName(), r.Name()))
		return err
	}

	return nil
}

// EnsureUpdateObject applies update to the object, re-fetching and re-applying it
// on conflicts until 2 seconds timeout exceeds.
func (r *ObjectContext) EnsureUpdateObject(update func(object client.Object, log logr.Logger) (client.Object, logr.Logger, error)) error {
	ctx, cancel := context.WithTimeout(r.Ctx, time.Second*2)
	defer cancel()
	if err := r.forceUpdate(ctx, update); err != nil {
		return err
	}

	return nil
}

// UpdateLabels replaces the object labels with the result of mutate. mutate is
// given the current labels and is called again after every conflict.
func (r *ObjectContext) UpdateLabels(mutate func(labels map[string]string) (map[string]string, error)) error {
	return r.EnsureUpdateObject(func(object client.Object, log logr.Logger) (client.Object, logr.Logger, error) {
		labels, err := mutate(object.GetLabels())
		if err != nil {
			return object, log, err
		}
		object.SetLabels(labels)
		return object, log.WithValues("updated", "labels"), nil
	})
}

func (r *ObjectContext) groupResource() schema.GroupResource {
	return schema.GroupResource{Resource: r.GetKindName()}
}
