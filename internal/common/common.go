package common

import (
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// DeletionTimeStampExists returns true if an object is being deleted, and false otherwise.
func DeletionTimeStampExists(object client.Object) bool {
	return !object.GetDeletionTimestamp().IsZero()
}

// MergeMaps returns a new map holding the entries of all given maps. Later maps win.
func MergeMaps(maps ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}

	return merged
}
