package user

import (
	"context"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/common"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// UpdatePassword sets a permanent password.
func (s *Service) UpdatePassword(ctx context.Context, id, password string) error {
	return s.setPassword(ctx, id, zcpv1.Credential{Password: password})
}

// ResetPassword sets a password the user may be required to change on next login.
func (s *Service) ResetPassword(ctx context.Context, id string, credential zcpv1.Credential) error {
	return s.setPassword(ctx, id, credential)
}

func (s *Service) setPassword(ctx context.Context, id string, credential zcpv1.Credential) error {
	if err := s.Provider.SetPassword(ctx, id, credential); err != nil {
		return identityError(common.CodeCredentials, "password", err)
	}
	log.FromContext(s.logger(ctx, "id", id)).Info("successfully set password", "temporary", credential.Temporary)
	return nil
}

// ResetCredentials asks the user to perform actions on next login.
func (s *Service) ResetCredentials(ctx context.Context, id string, actions []string) error {
	if err := s.Provider.ResetCredentials(ctx, id, actions); err != nil {
		return identityError(common.CodeCredentials, "credentials", err)
	}
	log.FromContext(s.logger(ctx, "id", id)).Info("successfully requested credential reset", "actions", actions)
	return nil
}

func (s *Service) EnableOTP(ctx context.Context, id string) error {
	if err := s.Provider.EnableOTP(ctx, id); err != nil {
		return identityError(common.CodeOTP, "otp", err)
	}
	return nil
}

func (s *Service) DeleteOTP(ctx context.Context, id string) error {
	if err := s.Provider.DisableOTP(ctx, id); err != nil {
		return identityError(common.CodeOTP, "otp", err)
	}
	return nil
}

// Logout ends every session of a user.
func (s *Service) Logout(ctx context.Context, id string) error {
	if err := s.Provider.Logout(ctx, id); err != nil {
		return identityError(common.CodeLogout, "logout", err)
	}
	log.FromContext(s.logger(ctx, "id", id)).Info("successfully logged out user")
	return nil
}
