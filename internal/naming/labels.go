package naming

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// LabelValue returns identity as a valid label value. Identities that are not
// already valid label values, or that look encoded, are encoded the same way
// object names are.
func LabelValue(identity string) string {
	if len(validation.IsValidLabelValue(identity)) == 0 && !hashed.MatchString(identity) {
		return identity
	}
	return encode(identity, validation.LabelValueMaxLength)
}

// SystemLabels returns the labels carried by every object this module manages.
func SystemLabels() map[string]string {
	return map[string]string{zcpv1.ManagedByLabel: zcpv1.ManagedBy}
}

// SystemNamespaceLabels returns the labels of objects owned by a namespace.
func SystemNamespaceLabels(namespace string) map[string]string {
	return common.MergeMaps(SystemLabels(), map[string]string{zcpv1.NamespaceLabel: LabelValue(namespace)})
}

// SystemUsernameLabels returns the labels of objects owned by a user.
func SystemUsernameLabels(username string) map[string]string {
	return common.MergeMaps(SystemLabels(), map[string]string{zcpv1.UsernameLabel: LabelValue(username)})
}

// UsernameSelector selects the objects owned by username.
func UsernameSelector(username string) client.MatchingLabels {
	return client.MatchingLabels{zcpv1.UsernameLabel: LabelValue(username)}
}

// ParseLabel splits a "key=value" string and validates both halves.
func ParseLabel(label string) (string, string, error) {
	parts := strings.Split(label, "=")
	if len(parts) != 2 {
		return "", "", labelError(fmt.Errorf("label %q is not of the form key=value", label))
	}

	key, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if errs := validation.IsQualifiedName(key); len(errs) > 0 {
		return "", "", labelError(fmt.Errorf("invalid label key %q: %s", key, strings.Join(errs, ", ")))
	}
	if errs := validation.IsValidLabelValue(value); len(errs) > 0 {
		return "", "", labelError(fmt.Errorf("invalid label value %q: %s", value, strings.Join(errs, ", ")))
	}

	return key, value, nil
}

// AddLabel returns a copy of labels with label set. labels is never modified.
func AddLabel(labels map[string]string, label string) (map[string]string, error) {
	key, value, err := ParseLabel(label)
	if err != nil {
		return labels, err
	}
	if err := checkReserved(key); err != nil {
		return labels, err
	}

	updated := maps.Clone(labels)
	if updated == nil {
		updated = map[string]string{}
	}
	updated[key] = value

	return updated, nil
}

// RemoveLabel returns a copy of labels without label. Nothing is removed unless
// the current value of the key equals the value of label.
func RemoveLabel(labels map[string]string, label string) (map[string]string, error) {
	key, value, err := ParseLabel(label)
	if err != nil {
		return labels, err
	}
	if err := checkReserved(key); err != nil {
		return labels, err
	}

	updated := maps.Clone(labels)
	if current, ok := updated[key]; ok && current == value {
		delete(updated, key)
	}

	return updated, nil
}

// IsReservedKey returns true if key is managed by this module and must not be
// edited through label operations.
func IsReservedKey(key string) bool {
	return key == zcpv1.ManagedByLabel || strings.HasPrefix(key, zcpv1.MetaGroup)
}

func checkReserved(key string) error {
	if IsReservedKey(key) {
		return labelError(fmt.Errorf("label key %q is reserved", key))
	}
	return nil
}

// LabelStrings returns labels as sorted "key=value" strings.
func LabelStrings(labels map[string]string) []string {
	out := make([]string, 0, len(labels))
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		out = append(out, k+"="+labels[k])
	}

	return out
}

func labelError(err error) error {
	return common.NewError(common.CodeNamespaceLabel, common.KindInvalidLabelFormat, "", err)
}
