package rolebinding

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/metrics"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	"github.com/yanghoon/zcp-iam/internal/rolebinding/rbutils"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const stageServiceAccount = "serviceaccount"

// ServiceAccount returns the ServiceAccount of a user, present or not.
func (m *Manager) ServiceAccount(ctx context.Context, username string) (*objectcontext.ObjectContext, error) {
	key := client.ObjectKey{Namespace: m.SystemNamespace, Name: naming.ServiceAccountName(username)}
	saObject, err := objectcontext.New(ctx, m.Client, key, &corev1.ServiceAccount{})
	if err != nil {
		return nil, common.Upstream(common.CodeServiceAccount, stageServiceAccount, err)
	}

	return saObject, nil
}

// EnsureServiceAccount creates the ServiceAccount of a user. If it already exists
// its ownership labels are brought up to date instead.
func (m *Manager) EnsureServiceAccount(ctx context.Context, username string) error {
	if err := common.ValidateUsername(username); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)
	logger := log.FromContext(ctx)

	saObject := objectcontext.Compose(ctx, m.Client, rbutils.ComposeServiceAccount(username, m.SystemNamespace))
	err := saObject.CreateObject()
	if err == nil {
		metrics.ObserveRBACMutation("ServiceAccount", "create")
		logger.Info("successfully created service account", "serviceAccount", saObject.Name())
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return common.Upstream(common.CodeServiceAccount, stageServiceAccount,
			fmt.Errorf("failed to create service account %q: %w", saObject.Name(), err))
	}

	current, err := m.ServiceAccount(ctx, username)
	if err != nil {
		return err
	}
	if err := current.UpdateObject(func(object client.Object, log logr.Logger) (client.Object, logr.Logger) {
		object.SetLabels(common.MergeMaps(object.GetLabels(), naming.SystemUsernameLabels(username)))
		return object, log.WithValues("updated", "labels")
	}); err != nil {
		return common.Upstream(common.CodeServiceAccount, stageServiceAccount,
			fmt.Errorf("failed to edit service account %q: %w", current.Name(), err))
	}
	metrics.ObserveRBACMutation("ServiceAccount", "update")
	logger.Info("successfully edited existing service account", "serviceAccount", current.Name())

	return nil
}

// ResetServiceAccount deletes every ServiceAccount and token Secret of a user and
// creates a fresh ServiceAccount. Existing bindings keep pointing at it by name.
func (m *Manager) ResetServiceAccount(ctx context.Context, username string) error {
	if err := common.ValidateUsername(username); err != nil {
		return err
	}
	ctx = m.logger(ctx, username)

	if err := m.deleteServiceAccounts(ctx, username); err != nil {
		return err
	}

	return m.EnsureServiceAccount(ctx, username)
}

// deleteServiceAccounts deletes the ServiceAccounts and token Secrets owned by a user.
func (m *Manager) deleteServiceAccounts(ctx context.Context, username string) error {
	logger := log.FromContext(ctx)

	for _, list := range []client.ObjectList{&corev1.SecretList{}, &corev1.ServiceAccountList{}} {
		if err := m.Client.List(ctx, list, client.InNamespace(m.SystemNamespace), naming.UsernameSelector(username)); err != nil {
			return common.Upstream(common.CodeServiceAccount, stageServiceAccount, err)
		}

		var objects []client.Object
		switch l := list.(type) {
		case *corev1.SecretList:
			for i := range l.Items {
				objects = append(objects, &l.Items[i])
			}
			objects = appendMissing(objects, &corev1.Secret{}, m.SystemNamespace, naming.TokenSecretName(username))
		case *corev1.ServiceAccountList:
			for i := range l.Items {
				objects = append(objects, &l.Items[i])
			}
			objects = appendMissing(objects, &corev1.ServiceAccount{}, m.SystemNamespace, naming.ServiceAccountName(username))
		}

		for _, obj := range objects {
			if err := objectcontext.Compose(ctx, m.Client, obj).DeleteObject(); err != nil {
				return common.Upstream(common.CodeServiceAccount, stageServiceAccount,
					fmt.Errorf("failed to delete %s: %w", obj.GetName(), err))
			}
		}
	}
	metrics.ObserveRBACMutation("ServiceAccount", "delete")
	logger.Info("successfully deleted service accounts")

	return nil
}

// appendMissing appends an object with the derived name unless one with that name
// is already in objects. Deleting it tolerates it not existing.
func appendMissing(objects []client.Object, obj client.Object, namespace, name string) []client.Object {
	for _, o := range objects {
		if o.GetName() == name {
			return objects
		}
	}
	obj.SetNamespace(namespace)
	obj.SetName(name)

	return append(objects, obj)
}

