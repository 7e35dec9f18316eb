package namespace

import (
	"context"
	"maps"
	"slices"

	"github.com/yanghoon/zcp-iam/internal/common"
	"github.com/yanghoon/zcp-iam/internal/naming"
	"github.com/yanghoon/zcp-iam/internal/objectcontext"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// AddLabel sets a "key=value" label on a namespace. A malformed label, or one
// with a reserved key, is rejected before the namespace is read.
func (s *Service) AddLabel(ctx context.Context, name, label string) error {
	return s.editLabels(ctx, name, label, naming.AddLabel)
}

// RemoveLabel removes a "key=value" label from a namespace. The label is kept
// when the namespace holds a different value for the key.
func (s *Service) RemoveLabel(ctx context.Context, name, label string) error {
	return s.editLabels(ctx, name, label, naming.RemoveLabel)
}

func (s *Service) editLabels(ctx context.Context, name, label string, edit func(map[string]string, string) (map[string]string, error)) error {
	if _, err := edit(nil, label); err != nil {
		return err
	}
	logger := log.FromContext(ctx).WithName("namespace").WithValues("namespace", name, "label", label)

	nsObject, err := s.namespaceObject(ctx, name)
	if err != nil {
		return err
	}

	if err := nsObject.UpdateLabels(func(labels map[string]string) (map[string]string, error) {
		return edit(labels, label)
	}); err != nil {
		return common.WithStage(common.CodeNamespaceLabel, "", "", err)
	}
	logger.Info("successfully updated namespace labels")

	return nil
}

// Labels returns the labels of a namespace as sorted "key=value" strings.
func (s *Service) Labels(ctx context.Context, name string) ([]string, error) {
	ns, err := s.GetNamespace(ctx, name)
	if err != nil {
		return nil, err
	}

	return naming.LabelStrings(ns.Labels), nil
}

// AllLabels returns every distinct "key=value" label found on any namespace.
func (s *Service) AllLabels(ctx context.Context) ([]string, error) {
	list, err := objectcontext.NewList(ctx, s.Client, &corev1.NamespaceList{})
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceList, "", err)
	}

	seen := map[string]struct{}{}
	for _, ns := range list.Objects.(*corev1.NamespaceList).Items {
		for _, l := range naming.LabelStrings(ns.Labels) {
			seen[l] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *Service) namespaceObject(ctx context.Context, name string) (*objectcontext.ObjectContext, error) {
	nsObject, err := objectcontext.New(ctx, s.Client, client.ObjectKey{Name: name}, &corev1.Namespace{})
	if err != nil {
		return nil, common.Upstream(common.CodeNamespaceGet, "", err)
	}
	if !nsObject.IsPresent() {
		return nil, common.NewError(common.CodeNamespaceGet, common.KindNotFound, "", errNamespaceNotFound(name))
	}

	return nsObject, nil
}
