package zitadel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"
	"github.com/zitadel/oidc/v3/pkg/oidc"
	"github.com/zitadel/zitadel-go/v3/pkg/client"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/management"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/object/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/session/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/user/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/zitadel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// NamespaceMetadataKey is the user metadata key holding the default namespace.
const NamespaceMetadataKey = "defaultNamespace"

// Zitadel is an identity.Provider backed by a zitadel instance.
type Zitadel struct {
	Client   *client.Client
	PageSize uint32
}

var _ identity.Provider = &Zitadel{}

// New connects to the zitadel instance described by cfg using a service user key.
func New(ctx context.Context, cfg config.ZitadelConfig) (*Zitadel, error) {
	logger := log.FromContext(ctx).WithName("zitadel")

	var options []zitadel.Option
	if cfg.Insecure {
		logger.Info("creating an insecure client connection to zitadel", "domain", cfg.Domain)
		options = append(options, zitadel.WithInsecure(strconv.Itoa(int(cfg.Port))))
	}
	if cfg.Port != 0 {
		options = append(options, zitadel.WithPort(cfg.Port))
	}

	c, err := client.New(ctx, zitadel.New(cfg.Domain, options...),
		client.WithAuth(client.DefaultServiceUserAuthentication(cfg.KeyPath, oidc.ScopeOpenID, client.ScopeZitadelAPI())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zitadel client: %w", err)
	}

	return &Zitadel{Client: c, PageSize: cfg.PageSize}, nil
}

func (z *Zitadel) Name() string {
	return "zitadel"
}

func (z *Zitadel) ListUsers(ctx context.Context, keyword string) ([]zcpv1.IdentityUser, error) {
	result, err := listAllUsers(ctx, z.Client.UserServiceV2().ListUsers, keywordQueries(keyword), z.PageSize)
	if err != nil {
		return nil, mapError(err)
	}

	users := make([]zcpv1.IdentityUser, 0, len(result))
	for _, u := range result {
		users = append(users, toIdentityUser(u))
	}

	return users, nil
}

type listUsersFunc func(ctx context.Context, in *user.ListUsersRequest, opts ...grpc.CallOption) (*user.ListUsersResponse, error)

// listAllUsers requests pages of pageSize users until the reported total is
// reached or a page comes back empty.
func listAllUsers(ctx context.Context, list listUsersFunc, queries []*user.SearchQuery, pageSize uint32) ([]*user.User, error) {
	var users []*user.User
	for {
		resp, err := list(ctx, &user.ListUsersRequest{
			Query:   &object.ListQuery{Offset: uint64(len(users)), Limit: pageSize, Asc: true},
			Queries: queries,
		})
		if err != nil {
			return nil, err
		}
		users = append(users, resp.GetResult()...)

		if len(resp.GetResult()) == 0 || uint64(len(users)) >= resp.GetDetails().GetTotalResult() {
			return users, nil
		}
	}
}

func (z *Zitadel) GetUser(ctx context.Context, id string) (*zcpv1.IdentityUser, error) {
	resp, err := z.Client.UserServiceV2().GetUserByID(ctx, &user.GetUserByIDRequest{UserId: id})
	if err != nil {
		return nil, mapError(err)
	}

	u := toIdentityUser(resp.GetUser())
	namespace, err := z.defaultNamespace(ctx, id)
	if err != nil {
		return nil, err
	}
	u.DefaultNamespace = namespace

	return &u, nil
}

func (z *Zitadel) CreateUser(ctx context.Context, u zcpv1.IdentityUser) (string, error) {
	req := &user.AddHumanUserRequest{
		Username: &u.Username,
		Profile: &user.SetHumanProfile{
			GivenName:  u.FirstName,
			FamilyName: u.LastName,
		},
		Email: &user.SetHumanEmail{
			Email:        u.Email,
			Verification: &user.SetHumanEmail_IsVerified{IsVerified: u.EmailVerified},
		},
	}
	if u.DefaultNamespace != "" {
		req.Metadata = []*user.SetMetadataEntry{{Key: NamespaceMetadataKey, Value: []byte(u.DefaultNamespace)}}
	}

	resp, err := z.Client.UserServiceV2().AddHumanUser(ctx, req)
	if err != nil {
		return "", mapError(err)
	}

	if !u.Enabled {
		if _, err := z.Client.UserServiceV2().DeactivateUser(ctx, &user.DeactivateUserRequest{UserId: resp.GetUserId()}); err != nil {
			return resp.GetUserId(), mapError(err)
		}
	}

	return resp.GetUserId(), nil
}

func (z *Zitadel) UpdateUser(ctx context.Context, u zcpv1.IdentityUser) error {
	current, err := z.Client.UserServiceV2().GetUserByID(ctx, &user.GetUserByIDRequest{UserId: u.ID})
	if err != nil {
		return mapError(err)
	}

	if _, err := z.Client.UserServiceV2().UpdateHumanUser(ctx, &user.UpdateHumanUserRequest{
		UserId:   u.ID,
		Username: &u.Username,
		Profile: &user.SetHumanProfile{
			GivenName:  u.FirstName,
			FamilyName: u.LastName,
		},
		Email: &user.SetHumanEmail{
			Email:        u.Email,
			Verification: &user.SetHumanEmail_IsVerified{IsVerified: u.EmailVerified},
		},
	}); err != nil {
		return mapError(err)
	}

	if _, err := z.Client.ManagementService().SetUserMetadata(ctx, &management.SetUserMetadataRequest{
		Id:    u.ID,
		Key:   NamespaceMetadataKey,
		Value: []byte(u.DefaultNamespace),
	}); err != nil {
		return mapError(err)
	}

	active := current.GetUser().GetState() == user.UserState_USER_STATE_ACTIVE
	switch {
	case active && !u.Enabled:
		_, err = z.Client.UserServiceV2().DeactivateUser(ctx, &user.DeactivateUserRequest{UserId: u.ID})
	case !active && u.Enabled:
		_, err = z.Client.UserServiceV2().ReactivateUser(ctx, &user.ReactivateUserRequest{UserId: u.ID})
	}

	return mapError(err)
}

func (z *Zitadel) DeleteUser(ctx context.Context, id string) error {
	_, err := z.Client.UserServiceV2().DeleteUser(ctx, &user.DeleteUserRequest{UserId: id})
	return mapError(err)
}

func (z *Zitadel) SetPassword(ctx context.Context, id string, credential zcpv1.Credential) error {
	_, err := z.Client.UserServiceV2().SetPassword(ctx, &user.SetPasswordRequest{
		UserId: id,
		NewPassword: &user.Password{
			Password:       credential.Password,
			ChangeRequired: credential.Temporary,
		},
	})
	return mapError(err)
}

// ResetCredentials sends a password reset link for UPDATE_PASSWORD and starts a
// TOTP registration for CONFIGURE_TOTP. Other actions are not supported.
func (z *Zitadel) ResetCredentials(ctx context.Context, id string, actions []string) error {
	for _, action := range actions {
		var err error
		switch action {
		case zcpv1.UpdatePasswordAction:
			_, err = z.Client.UserServiceV2().PasswordReset(ctx, &user.PasswordResetRequest{
				UserId: id,
				Medium: &user.PasswordResetRequest_SendLink{
					SendLink: &user.SendPasswordResetLink{NotificationType: user.NotificationType_NOTIFICATION_TYPE_Email},
				},
			})
		case zcpv1.ConfigureTOTPAction:
			err = z.EnableOTP(ctx, id)
		default:
			err = fmt.Errorf("%w: required action %q", identity.ErrUnsupported, action)
		}
		if err != nil {
			return mapError(err)
		}
	}

	return nil
}

func (z *Zitadel) EnableOTP(ctx context.Context, id string) error {
	_, err := z.Client.UserServiceV2().RegisterTOTP(ctx, &user.RegisterTOTPRequest{UserId: id})
	return mapError(err)
}

func (z *Zitadel) DisableOTP(ctx context.Context, id string) error {
	_, err := z.Client.UserServiceV2().RemoveTOTP(ctx, &user.RemoveTOTPRequest{UserId: id})
	return mapError(err)
}

// Logout terminates every session of the user.
func (z *Zitadel) Logout(ctx context.Context, id string) error {
	resp, err := z.Client.SessionServiceV2().ListSessions(ctx, &session.ListSessionsRequest{
		Queries: []*session.SearchQuery{
			{Query: &session.SearchQuery_UserIdQuery{UserIdQuery: &session.UserIDQuery{Id: id}}},
		},
	})
	if err != nil {
		return mapError(err)
	}

	var errs []error
	for _, s := range resp.GetSessions() {
		if _, err := z.Client.SessionServiceV2().DeleteSession(ctx, &session.DeleteSessionRequest{SessionId: s.GetId()}); err != nil {
			errs = append(errs, mapError(err))
		}
	}

	return errors.Join(errs...)
}

func (z *Zitadel) defaultNamespace(ctx context.Context, id string) (string, error) {
	resp, err := z.Client.ManagementService().GetUserMetadata(ctx, &management.GetUserMetadataRequest{
		Id:  id,
		Key: NamespaceMetadataKey,
	})
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", mapError(err)
	}

	return string(resp.GetMetadata().GetValue()), nil
}

// keywordQueries matches keyword against the username or the email.
func keywordQueries(keyword string) []*user.SearchQuery {
	if keyword == "" {
		return nil
	}

	return []*user.SearchQuery{{
		Query: &user.SearchQuery_OrQuery{OrQuery: &user.OrQuery{Queries: []*user.SearchQuery{
			{Query: &user.SearchQuery_UserNameQuery{UserNameQuery: &user.UserNameQuery{
				UserName: keyword,
				Method:   object.TextQueryMethod_TEXT_QUERY_METHOD_CONTAINS_IGNORE_CASE,
			}}},
			{Query: &user.SearchQuery_EmailQuery{EmailQuery: &user.EmailQuery{
				EmailAddress: keyword,
				Method:       object.TextQueryMethod_TEXT_QUERY_METHOD_CONTAINS_IGNORE_CASE,
			}}},
		}}},
	}}
}

func toIdentityUser(u *user.User) zcpv1.IdentityUser {
	human := u.GetHuman()

	return zcpv1.IdentityUser{
		ID:            u.GetUserId(),
		Username:      u.GetUsername(),
		Email:         human.GetEmail().GetEmail(),
		FirstName:     human.GetProfile().GetGivenName(),
		LastName:      human.GetProfile().GetFamilyName(),
		EmailVerified: human.GetEmail().GetIsVerified(),
		Enabled:       u.GetState() == user.UserState_USER_STATE_ACTIVE,
	}
}

// mapError translates gRPC status codes into identity errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %w", identity.ErrUserNotFound, err)
	case codes.Unimplemented:
		return fmt.Errorf("%w: %w", identity.ErrUnsupported, err)
	default:
		return err
	}
}
