package common

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Kind classifies an error independently of the call that produced it.
type Kind string

func (k Kind) Error() string {
	return string(k)
}

const (
	KindNotFound               Kind = "NotFound"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindMultipleActiveBindings Kind = "MultipleActiveBindings"
	KindInvalidLabelFormat     Kind = "InvalidLabelFormat"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindUpstreamFailure        Kind = "UpstreamFailure"
	KindUnsupported            Kind = "Unsupported"
)

// Domain codes reported to callers of the namespace and user operations.
const (
	CodeNamespaceList     = "N001"
	CodeNamespaceSave     = "N002"
	CodeNamespaceResource = "N003"
	CodeNamespaceDelete   = "N004"
	CodeNamespaceGet      = "N005"
	CodeRoleBindingCreate = "N006"
	CodeRoleBindingDelete = "N007"
	CodeNamespaceUsers    = "N008"
	CodeNamespaceLabel    = "N009"

	CodeIdentityProvider         = "ZCP-000"
	CodeUserList                 = "ZCP-001"
	CodeMultipleBindings         = "ZCP-002"
	CodeServiceAccount           = "ZCP-003"
	CodeClusterRoleBindingGet    = "ZCP-004"
	CodeUserCreate               = "ZCP-005"
	CodeUserUpdate               = "ZCP-006"
	CodeUserGet                  = "ZCP-007"
	CodeClusterRoleBindingDelete = "ZCP-008"
	CodeClusterRoleBindingCreate = "ZCP-009"
	CodeKubeConfig               = "ZCP-010"
	CodeUserDelete               = "ZCP-011"
	CodeCredentials              = "ZCP-012"
	CodeOTP                      = "ZCP-013"
	CodeLogout                   = "ZCP-014"
)

// Error carries a domain code, a kind and the stage an operation failed at.
// Completed names the last stage that finished before the failure, if any.
type Error struct {
	Code      string
	Kind      Kind
	Stage     string
	Completed string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Kind)
	if e.Stage != "" {
		msg += fmt.Sprintf(" at stage %q", e.Stage)
	}
	if e.Completed != "" {
		msg += fmt.Sprintf(" (completed %q)", e.Completed)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the cause, so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewError returns an Error of the given kind.
func NewError(code string, kind Kind, stage string, err error) *Error {
	return &Error{Code: code, Kind: kind, Stage: stage, Err: err}
}

// Upstream wraps an error returned by the cluster or the identity provider. Not
// found and already exists responses keep their own kind.
func Upstream(code, stage string, err error) *Error {
	return NewError(code, kindOfAPIError(err), stage, err)
}

// WithStage reports err as a failure of stage, after completed finished. The kind
// of err is kept.
func WithStage(code, stage, completed string, err error) *Error {
	return &Error{Code: code, Kind: KindOf(err), Stage: stage, Completed: completed, Err: err}
}

// KindOf returns the kind of err, or an empty Kind if err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var k Kind
	if errors.As(err, &k) {
		return k
	}

	return kindOfAPIError(err)
}

// IsKind returns true if err is of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func kindOfAPIError(err error) Kind {
	switch {
	case apierrors.IsNotFound(err):
		return KindNotFound
	case apierrors.IsAlreadyExists(err):
		return KindAlreadyExists
	default:
		return KindUpstreamFailure
	}
}
