package ldap

import (
	"context"
	"fmt"
	"strings"
	"time"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	attrUID        = "uid"
	attrMail       = "mail"
	attrGivenName  = "givenName"
	attrSurname    = "sn"
	attrCommonName = "cn"
	attrEntryUUID  = "entryUUID"
	attrCreated    = "createTimestamp"
	attrLocked     = "pwdAccountLockedTime"
	attrReset      = "pwdReset"

	// permanentLock locks an account until an administrator unlocks it.
	permanentLock   = "000001010000Z"
	generalizedTime = "20060102150405Z"
)

// Conn is the subset of an LDAP connection the provider uses.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error)
	Close() error
}

// LDAP is an identity.Provider backed by an LDAP directory. Users are
// identified by their entryUUID.
type LDAP struct {
	cfg  config.LDAPConfig
	dial func(url string) (Conn, error)
}

var _ identity.Provider = &LDAP{}

func New(cfg config.LDAPConfig) *LDAP {
	return NewWithDialer(cfg, func(url string) (Conn, error) {
		return ldap.DialURL(url)
	})
}

// NewWithDialer returns a provider that opens connections with dial.
func NewWithDialer(cfg config.LDAPConfig, dial func(url string) (Conn, error)) *LDAP {
	return &LDAP{cfg: cfg, dial: dial}
}

func (l *LDAP) Name() string {
	return "ldap"
}

// connect opens a connection bound as the configured service DN.
func (l *LDAP) connect(ctx context.Context) (Conn, error) {
	conn, err := l.dial(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", l.cfg.URL, err)
	}
	if err := conn.Bind(l.cfg.BindDN, l.cfg.BindPassword); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to bind as %s: %w", l.cfg.BindDN, err)
	}
	log.FromContext(ctx).WithName("ldap").V(1).Info("bound to directory", "url", l.cfg.URL)

	return conn, nil
}

func (l *LDAP) attributes() []string {
	attrs := []string{attrUID, attrMail, attrGivenName, attrSurname, attrCommonName, attrEntryUUID, attrCreated, attrLocked}
	if l.cfg.NamespaceAttribute != "" {
		attrs = append(attrs, l.cfg.NamespaceAttribute)
	}
	return attrs
}

func (l *LDAP) searchRequest(filter string, controls ...ldap.Control) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		l.attributes(),
		controls,
	)
}

func (l *LDAP) search(conn Conn, filter string) ([]*ldap.Entry, error) {
	res, err := conn.Search(l.searchRequest(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", filter, err)
	}

	return res.Entries, nil
}

// searchAll collects every page of a simple paged results search. The server
// ends the search by returning an empty cookie.
func (l *LDAP) searchAll(conn Conn, filter string) ([]*ldap.Entry, error) {
	if l.cfg.PageSize == 0 {
		return l.search(conn, filter)
	}

	paging := ldap.NewControlPaging(l.cfg.PageSize)
	req := l.searchRequest(filter, paging)

	var entries []*ldap.Entry
	for {
		res, err := conn.Search(req)
		if err != nil {
			return nil, fmt.Errorf("failed to search %q after %d entries: %w", filter, len(entries), err)
		}
		entries = append(entries, res.Entries...)

		next, ok := ldap.FindControl(res.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
		if !ok || len(next.Cookie) == 0 {
			return entries, nil
		}
		paging.SetCookie(next.Cookie)
	}
}

// entry returns the single entry whose entryUUID is id.
func (l *LDAP) entry(conn Conn, id string) (*ldap.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q is not an entryUUID", identity.ErrUserNotFound, id)
	}

	entries, err := l.search(conn, l.idFilter(id))
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("%w: %s", identity.ErrUserNotFound, id)
	case 1:
		return entries[0], nil
	default:
		return nil, fmt.Errorf("found %d entries with entryUUID %s", len(entries), id)
	}
}

func (l *LDAP) ListUsers(ctx context.Context, keyword string) ([]zcpv1.IdentityUser, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entries, err := l.searchAll(conn, l.keywordFilter(keyword))
	if err != nil {
		return nil, err
	}

	users := make([]zcpv1.IdentityUser, 0, len(entries))
	for _, e := range entries {
		users = append(users, l.toIdentityUser(e))
	}

	return users, nil
}

func (l *LDAP) GetUser(ctx context.Context, id string) (*zcpv1.IdentityUser, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	e, err := l.entry(conn, id)
	if err != nil {
		return nil, err
	}

	u := l.toIdentityUser(e)
	return &u, nil
}

func (l *LDAP) CreateUser(ctx context.Context, u zcpv1.IdentityUser) (string, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	req := ldap.NewAddRequest(l.userDN(u.Username), nil)
	req.Attribute("objectClass", []string{l.cfg.UserObjectClass})
	req.Attribute(attrUID, []string{u.Username})
	req.Attribute(attrCommonName, []string{commonName(u)})
	req.Attribute(attrSurname, []string{orDefault(u.LastName, u.Username)})
	if u.FirstName != "" {
		req.Attribute(attrGivenName, []string{u.FirstName})
	}
	if u.Email != "" {
		req.Attribute(attrMail, []string{u.Email})
	}
	if u.DefaultNamespace != "" && l.cfg.NamespaceAttribute != "" {
		req.Attribute(l.cfg.NamespaceAttribute, []string{u.DefaultNamespace})
	}
	if !u.Enabled {
		req.Attribute(attrLocked, []string{permanentLock})
	}
	if err := conn.Add(req); err != nil {
		return "", fmt.Errorf("failed to add %s: %w", req.DN, err)
	}

	entries, err := l.search(conn, l.usernameFilter(u.Username))
	if err != nil {
		return "", err
	}
	if len(entries) != 1 {
		return "", fmt.Errorf("expected one entry for %s after create, found %d", u.Username, len(entries))
	}

	return entries[0].GetAttributeValue(attrEntryUUID), nil
}

func (l *LDAP) UpdateUser(ctx context.Context, u zcpv1.IdentityUser) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	e, err := l.entry(conn, u.ID)
	if err != nil {
		return err
	}

	req := ldap.NewModifyRequest(e.DN, nil)
	req.Replace(attrCommonName, []string{commonName(u)})
	req.Replace(attrSurname, []string{orDefault(u.LastName, u.Username)})
	replaceOrDelete(req, e, attrGivenName, u.FirstName)
	replaceOrDelete(req, e, attrMail, u.Email)
	if l.cfg.NamespaceAttribute != "" {
		replaceOrDelete(req, e, l.cfg.NamespaceAttribute, u.DefaultNamespace)
	}

	locked := e.GetAttributeValue(attrLocked) != ""
	switch {
	case u.Enabled && locked:
		req.Delete(attrLocked, nil)
	case !u.Enabled && !locked:
		req.Replace(attrLocked, []string{permanentLock})
	}

	if err := conn.Modify(req); err != nil {
		return fmt.Errorf("failed to modify %s: %w", e.DN, err)
	}

	return nil
}

func (l *LDAP) DeleteUser(ctx context.Context, id string) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	e, err := l.entry(conn, id)
	if err != nil {
		return err
	}

	if err := conn.Del(ldap.NewDelRequest(e.DN, nil)); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return fmt.Errorf("%w: %s", identity.ErrUserNotFound, id)
		}
		return fmt.Errorf("failed to delete %s: %w", e.DN, err)
	}

	return nil
}

// SetPassword uses the password modify extended operation. Temporary passwords
// set pwdReset so the directory forces a change on next bind.
func (l *LDAP) SetPassword(ctx context.Context, id string, credential zcpv1.Credential) error {
	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	e, err := l.entry(conn, id)
	if err != nil {
		return err
	}

	if _, err := conn.PasswordModify(ldap.NewPasswordModifyRequest(e.DN, "", credential.Password)); err != nil {
		return fmt.Errorf("failed to set password of %s: %w", e.DN, err)
	}

	if credential.Temporary {
		req := ldap.NewModifyRequest(e.DN, nil)
		req.Replace(attrReset, []string{"TRUE"})
		if err := conn.Modify(req); err != nil {
			return fmt.Errorf("failed to mark password of %s temporary: %w", e.DN, err)
		}
	}

	return nil
}

func (l *LDAP) ResetCredentials(_ context.Context, _ string, _ []string) error {
	return fmt.Errorf("%w: ldap has no required actions", identity.ErrUnsupported)
}

func (l *LDAP) EnableOTP(_ context.Context, _ string) error {
	return fmt.Errorf("%w: ldap has no otp support", identity.ErrUnsupported)
}

func (l *LDAP) DisableOTP(_ context.Context, _ string) error {
	return fmt.Errorf("%w: ldap has no otp support", identity.ErrUnsupported)
}

func (l *LDAP) Logout(_ context.Context, _ string) error {
	return fmt.Errorf("%w: ldap has no sessions", identity.ErrUnsupported)
}

func (l *LDAP) userDN(username string) string {
	return fmt.Sprintf("%s=%s,%s", attrUID, ldap.EscapeDN(username), l.cfg.BaseDN)
}

func (l *LDAP) objectClassFilter() string {
	return fmt.Sprintf("(objectClass=%s)", ldap.EscapeFilter(l.cfg.UserObjectClass))
}

func (l *LDAP) idFilter(id string) string {
	return fmt.Sprintf("(&%s(%s=%s))", l.objectClassFilter(), attrEntryUUID, ldap.EscapeFilter(id))
}

func (l *LDAP) usernameFilter(username string) string {
	return fmt.Sprintf("(&%s(%s=%s))", l.objectClassFilter(), attrUID, ldap.EscapeFilter(username))
}

func (l *LDAP) keywordFilter(keyword string) string {
	if keyword == "" {
		return l.objectClassFilter()
	}

	k := ldap.EscapeFilter(keyword)
	return fmt.Sprintf("(&%s(|(%s=*%s*)(%s=*%s*)(%s=*%s*)))",
		l.objectClassFilter(), attrUID, k, attrMail, k, attrCommonName, k)
}

func (l *LDAP) toIdentityUser(e *ldap.Entry) zcpv1.IdentityUser {
	u := zcpv1.IdentityUser{
		ID:        e.GetAttributeValue(attrEntryUUID),
		Username:  e.GetAttributeValue(attrUID),
		Email:     e.GetAttributeValue(attrMail),
		FirstName: e.GetAttributeValue(attrGivenName),
		LastName:  e.GetAttributeValue(attrSurname),
		Enabled:   e.GetAttributeValue(attrLocked) == "",
	}
	u.EmailVerified = u.Email != ""
	if l.cfg.NamespaceAttribute != "" {
		u.DefaultNamespace = e.GetAttributeValue(l.cfg.NamespaceAttribute)
	}
	if created, err := time.Parse(generalizedTime, e.GetAttributeValue(attrCreated)); err == nil {
		u.CreatedAt = created
	}

	return u
}

func replaceOrDelete(req *ldap.ModifyRequest, e *ldap.Entry, attr, value string) {
	switch {
	case value != "":
		req.Replace(attr, []string{value})
	case e.GetAttributeValue(attr) != "":
		req.Delete(attr, nil)
	}
}

func commonName(u zcpv1.IdentityUser) string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
