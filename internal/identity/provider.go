package identity

import (
	"context"
	"errors"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
)

var (
	// ErrUserNotFound is returned when no user matches the given id.
	ErrUserNotFound = errors.New("identity: user not found")
	// ErrUnsupported is returned by providers that cannot perform an operation.
	ErrUnsupported = errors.New("identity: operation not supported by provider")
)

// Provider is the external system of record for user identities.
type Provider interface {
	// ListUsers returns the users whose username, email or name contains keyword.
	// An empty keyword returns every user.
	ListUsers(ctx context.Context, keyword string) ([]zcpv1.IdentityUser, error)
	GetUser(ctx context.Context, id string) (*zcpv1.IdentityUser, error)
	// CreateUser creates a user and returns its id.
	CreateUser(ctx context.Context, user zcpv1.IdentityUser) (string, error)
	UpdateUser(ctx context.Context, user zcpv1.IdentityUser) error
	DeleteUser(ctx context.Context, id string) error

	SetPassword(ctx context.Context, id string, credential zcpv1.Credential) error
	// ResetCredentials asks the user to perform the given required actions.
	ResetCredentials(ctx context.Context, id string, actions []string) error
	EnableOTP(ctx context.Context, id string) error
	DisableOTP(ctx context.Context, id string) error
	// Logout ends every session of the user.
	Logout(ctx context.Context, id string) error

	// Name returns the provider name used in logs and metrics.
	Name() string
}
