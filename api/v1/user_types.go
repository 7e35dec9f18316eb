/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1

import (
	"time"
)

// ClusterRole is the name of a cluster-scoped role. The set of valid names is
// whatever ClusterRoles exist in the cluster.
type ClusterRole string

const (
	ClusterAdmin ClusterRole = "cluster-admin"
	Admin        ClusterRole = "admin"
	Edit         ClusterRole = "edit"
	View         ClusterRole = "view"
	Member       ClusterRole = "member"
	NoRole       ClusterRole = "none"
)

func (r ClusterRole) String() string {
	return string(r)
}

// IdentityUser is a user record as held by the identity provider.
type IdentityUser struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email,omitempty"`
	FirstName        string    `json:"firstName,omitempty"`
	LastName         string    `json:"lastName,omitempty"`
	Enabled          bool      `json:"enabled"`
	EmailVerified    bool      `json:"emailVerified"`
	TOTP             bool      `json:"totp"`
	DefaultNamespace string    `json:"defaultNamespace,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
}

// User is an identity record joined with its cluster-side authorization state.
type User struct {
	IdentityUser `json:",inline"`

	ClusterRole    ClusterRole `json:"clusterRole,omitempty"`
	NamespacedRole ClusterRole `json:"namespacedRole,omitempty"`
	Namespaces     []string    `json:"namespaces,omitempty"`
	UsedNamespace  int         `json:"usedNamespace"`
}

// Credential is a password assignment.
type Credential struct {
	Password  string `json:"password"`
	Temporary bool   `json:"temporary"`
}

// RoleBindingRequest names a user and the role they get inside a namespace.
type RoleBindingRequest struct {
	Username    string      `json:"username"`
	ClusterRole ClusterRole `json:"clusterRole"`
}
