package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"k8s.io/apimachinery/pkg/util/validation"
)

const (
	// MaxNameLength bounds every derived object name, so names also fit where a
	// DNS-1123 label is required.
	MaxNameLength = validation.DNS1123LabelMaxLength
	hashLength    = 8
)

// hashed matches the tail of an encoded identity: a short hash, alone or after a dash.
var hashed = regexp.MustCompile(`(^|-)[0-9a-f]{8}$`)

// ServiceAccountName returns the name of the ServiceAccount owned by username.
func ServiceAccountName(username string) string {
	return derive(zcpv1.ServiceAccountInfix, username)
}

// ClusterRoleBindingName returns the name of the ClusterRoleBinding owned by username.
func ClusterRoleBindingName(username string) string {
	return derive(zcpv1.ClusterRoleBindingInfix, username)
}

// RoleBindingName returns the name of the RoleBinding owned by username. The same
// name is used in every namespace.
func RoleBindingName(username string) string {
	return derive(zcpv1.RoleBindingInfix, username)
}

// TokenSecretName returns the name of the token Secret of the ServiceAccount owned by username.
func TokenSecretName(username string) string {
	return derive(zcpv1.ServiceAccountInfix, username+"-"+zcpv1.TokenSecretSuffix)
}

func ResourceQuotaName(namespace string) string {
	return derive(zcpv1.ResourceQuotaInfix, namespace)
}

func LimitRangeName(namespace string) string {
	return derive(zcpv1.LimitRangeInfix, namespace)
}

// UsernameFromRoleBindingName returns the identity encoded in a RoleBinding name
// and whether name has the RoleBinding prefix. The result equals the original
// username only if the username needed no encoding.
func UsernameFromRoleBindingName(name string) (string, bool) {
	return strip(zcpv1.RoleBindingInfix, name)
}

// UsernameFromClusterRoleBindingName is the ClusterRoleBinding counterpart of
// UsernameFromRoleBindingName.
func UsernameFromClusterRoleBindingName(name string) (string, bool) {
	return strip(zcpv1.ClusterRoleBindingInfix, name)
}

func prefix(infix string) string {
	return zcpv1.SystemPrefix + "-" + infix + "-"
}

func derive(infix, identity string) string {
	p := prefix(infix)
	return p + encode(identity, MaxNameLength-len(p))
}

func strip(infix, name string) (string, bool) {
	p := prefix(infix)
	if !strings.HasPrefix(name, p) || len(name) == len(p) {
		return "", false
	}
	return strings.TrimPrefix(name, p), true
}

// encode returns s unchanged when it is a valid DNS-1123 label no longer than max
// that does not end like an encoded value. Otherwise it returns a sanitized,
// truncated form of s followed by a short hash of the original. Unchanged and
// encoded values never share a shape, so distinct inputs do not collide.
func encode(s string, max int) string {
	if len(s) <= max && len(validation.IsDNS1123Label(s)) == 0 && !hashed.MatchString(s) {
		return s
	}

	h := shortHash(s)
	sanitized := sanitize(s)
	if room := max - hashLength - 1; len(sanitized) > room {
		sanitized = strings.TrimRight(sanitized[:room], "-")
	}
	if sanitized == "" {
		return h
	}

	return sanitized + "-" + h
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	return strings.Trim(b.String(), "-")
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLength]
}
