package ldap

import (
	"context"
	"errors"
	"strconv"
	"strings"

	ldap "github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/config"
	"github.com/yanghoon/zcp-iam/internal/identity"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeConn answers searches from an in-memory entry list keyed by entryUUID
// and uid, and records every write.
type fakeConn struct {
	entries   []*ldap.Entry
	bindErr   error
	added     []*ldap.AddRequest
	modified  []*ldap.ModifyRequest
	deleted   []string
	passwords map[string]string
	closed    bool
	pages     int
}

func (f *fakeConn) Bind(_, _ string) error { return f.bindErr }

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	var out []*ldap.Entry
	for _, e := range f.entries {
		id := e.GetAttributeValue(attrEntryUUID)
		uid := e.GetAttributeValue(attrUID)
		var match bool
		switch {
		case strings.Contains(req.Filter, "("+attrEntryUUID+"="):
			match = strings.Contains(req.Filter, "("+attrEntryUUID+"="+id+")")
		case strings.Contains(req.Filter, "|"):
			match = strings.Contains(req.Filter, "("+attrUID+"=*"+uid+"*)")
		case strings.Contains(req.Filter, "("+attrUID+"="):
			match = strings.Contains(req.Filter, "("+attrUID+"="+uid+")")
		default:
			match = true
		}
		if match {
			out = append(out, e)
		}
	}

	// Paged searches are served PagingSize entries at a time, the cookie holding
	// the offset of the next page.
	if paging, ok := ldap.FindControl(req.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging); ok && paging.PagingSize > 0 {
		f.pages++
		start, _ := strconv.Atoi(string(paging.Cookie))
		end := min(start+int(paging.PagingSize), len(out))
		next := ldap.NewControlPaging(paging.PagingSize)
		if end < len(out) {
			next.SetCookie([]byte(strconv.Itoa(end)))
		}
		return &ldap.SearchResult{Entries: out[start:end], Controls: []ldap.Control{next}}, nil
	}
	return &ldap.SearchResult{Entries: out}, nil
}

func (f *fakeConn) Add(req *ldap.AddRequest) error {
	f.added = append(f.added, req)
	attrs := map[string][]string{attrEntryUUID: {uuid.NewString()}}
	for _, a := range req.Attributes {
		attrs[a.Type] = a.Vals
	}
	f.entries = append(f.entries, ldap.NewEntry(req.DN, attrs))
	return nil
}

func (f *fakeConn) Modify(req *ldap.ModifyRequest) error {
	f.modified = append(f.modified, req)
	return nil
}

func (f *fakeConn) Del(req *ldap.DelRequest) error {
	f.deleted = append(f.deleted, req.DN)
	return nil
}

func (f *fakeConn) PasswordModify(req *ldap.PasswordModifyRequest) (*ldap.PasswordModifyResult, error) {
	if f.passwords == nil {
		f.passwords = map[string]string{}
	}
	f.passwords[req.UserIdentity] = req.NewPassword
	return &ldap.PasswordModifyResult{}, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func modifiedAttributes(req *ldap.ModifyRequest) map[string][]string {
	out := map[string][]string{}
	for _, c := range req.Changes {
		out[c.Modification.Type] = c.Modification.Vals
	}
	return out
}

var _ = Describe("LDAP", func() {
	var (
		ctx      context.Context
		conn     *fakeConn
		provider *LDAP
		aliceID  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		aliceID = uuid.NewString()
		conn = &fakeConn{entries: []*ldap.Entry{
			ldap.NewEntry("uid=alice,ou=users,dc=example,dc=com", map[string][]string{
				attrEntryUUID: {aliceID},
				attrUID:       {"alice"},
				attrMail:      {"alice@example.com"},
				attrGivenName: {"Alice"},
				attrSurname:   {"Smith"},
				attrCreated:   {"20240102030405Z"},
				"description": {"team-a"},
			}),
			ldap.NewEntry("uid=bob,ou=users,dc=example,dc=com", map[string][]string{
				attrEntryUUID: {uuid.NewString()},
				attrUID:       {"bob"},
				attrLocked:    {permanentLock},
			}),
		}}
		provider = NewWithDialer(config.LDAPConfig{
			URL:                "ldap://localhost:389",
			BaseDN:             "ou=users,dc=example,dc=com",
			BindDN:             "cn=admin,dc=example,dc=com",
			UserObjectClass:    "inetOrgPerson",
			NamespaceAttribute: "description",
		}, func(string) (Conn, error) { return conn, nil })
	})

	Context("filters", func() {
		It("should escape the keyword", func() {
			filter := provider.keywordFilter("a*)(uid=x")
			Expect(filter).To(ContainSubstring(ldap.EscapeFilter("a*)(uid=x")))
			Expect(filter).To(HavePrefix("(&(objectClass=inetOrgPerson)(|"))
		})

		It("should only filter on the object class without a keyword", func() {
			Expect(provider.keywordFilter("")).To(Equal("(objectClass=inetOrgPerson)"))
		})
	})

	Context("reading users", func() {
		It("should convert directory entries", func() {
			u, err := provider.GetUser(ctx, aliceID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Username).To(Equal("alice"))
			Expect(u.Email).To(Equal("alice@example.com"))
			Expect(u.FirstName).To(Equal("Alice"))
			Expect(u.LastName).To(Equal("Smith"))
			Expect(u.DefaultNamespace).To(Equal("team-a"))
			Expect(u.Enabled).To(BeTrue())
			Expect(u.CreatedAt.Year()).To(Equal(2024))
			Expect(conn.closed).To(BeTrue())
		})

		It("should report locked accounts as disabled", func() {
			users, err := provider.ListUsers(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(1))
			Expect(users[0].Enabled).To(BeFalse())
		})

		It("should collect every page of a paged search", func() {
			conn.entries = append(conn.entries, ldap.NewEntry("uid=carol,ou=users,dc=example,dc=com", map[string][]string{
				attrEntryUUID: {uuid.NewString()},
				attrUID:       {"carol"},
			}))
			paged := NewWithDialer(config.LDAPConfig{
				URL:             "ldap://localhost:389",
				BaseDN:          "ou=users,dc=example,dc=com",
				UserObjectClass: "inetOrgPerson",
				PageSize:        2,
			}, func(string) (Conn, error) { return conn, nil })

			users, err := paged.ListUsers(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(conn.pages).To(Equal(2))

			usernames := make([]string, 0, len(users))
			for _, u := range users {
				usernames = append(usernames, u.Username)
			}
			Expect(usernames).To(ConsistOf("alice", "bob", "carol"))
		})

		It("should reject ids that are not entry uuids", func() {
			_, err := provider.GetUser(ctx, "alice")
			Expect(errors.Is(err, identity.ErrUserNotFound)).To(BeTrue())
		})

		It("should report unknown ids as not found", func() {
			_, err := provider.GetUser(ctx, uuid.NewString())
			Expect(errors.Is(err, identity.ErrUserNotFound)).To(BeTrue())
		})

		It("should surface bind failures", func() {
			conn.bindErr = errors.New("invalid credentials")
			_, err := provider.ListUsers(ctx, "")
			Expect(err).To(MatchError(ContainSubstring("failed to bind")))
		})
	})

	Context("writing users", func() {
		It("should add an entry and return its entryUUID", func() {
			id, err := provider.CreateUser(ctx, zcpv1.IdentityUser{
				Username:         "carol",
				Email:            "carol@example.com",
				DefaultNamespace: "team-b",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(uuid.Parse(id)).Error().NotTo(HaveOccurred())
			Expect(conn.added).To(HaveLen(1))
			Expect(conn.added[0].DN).To(Equal("uid=carol,ou=users,dc=example,dc=com"))
		})

		It("should lock a disabled user on update", func() {
			Expect(provider.UpdateUser(ctx, zcpv1.IdentityUser{ID: aliceID, Username: "alice", Enabled: false})).To(Succeed())
			Expect(conn.modified).To(HaveLen(1))
			Expect(modifiedAttributes(conn.modified[0])).To(HaveKeyWithValue(attrLocked, []string{permanentLock}))
		})

		It("should mark temporary passwords for reset", func() {
			Expect(provider.SetPassword(ctx, aliceID, zcpv1.Credential{Password: "s3cret", Temporary: true})).To(Succeed())
			Expect(conn.passwords).To(HaveKeyWithValue("uid=alice,ou=users,dc=example,dc=com", "s3cret"))
			Expect(modifiedAttributes(conn.modified[0])).To(HaveKeyWithValue(attrReset, []string{"TRUE"}))
		})

		It("should delete the entry", func() {
			Expect(provider.DeleteUser(ctx, aliceID)).To(Succeed())
			Expect(conn.deleted).To(ConsistOf("uid=alice,ou=users,dc=example,dc=com"))
		})
	})

	Context("unsupported operations", func() {
		It("should refuse otp, required actions and logout", func() {
			Expect(errors.Is(provider.EnableOTP(ctx, aliceID), identity.ErrUnsupported)).To(BeTrue())
			Expect(errors.Is(provider.DisableOTP(ctx, aliceID), identity.ErrUnsupported)).To(BeTrue())
			Expect(errors.Is(provider.ResetCredentials(ctx, aliceID, []string{zcpv1.UpdatePasswordAction}), identity.ErrUnsupported)).To(BeTrue())
			Expect(errors.Is(provider.Logout(ctx, aliceID), identity.ErrUnsupported)).To(BeTrue())
		})
	})
})
