package testutils

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	zcpv1 "github.com/yanghoon/zcp-iam/api/v1"
	"github.com/yanghoon/zcp-iam/internal/identity"
)

// MemoryProvider is an identity.Provider that keeps users in memory.
type MemoryProvider struct {
	mu        sync.Mutex
	users     map[string]zcpv1.IdentityUser
	passwords map[string]zcpv1.Credential
	actions   map[string][]string
	sessions  map[string]int

	// Errors makes the named method fail with the given error.
	Errors map[string]error
}

var _ identity.Provider = &MemoryProvider{}

// NewMemoryProvider returns a MemoryProvider holding the given users. Users
// without an id get a random one.
func NewMemoryProvider(users ...zcpv1.IdentityUser) *MemoryProvider {
	p := &MemoryProvider{
		users:     map[string]zcpv1.IdentityUser{},
		passwords: map[string]zcpv1.Credential{},
		actions:   map[string][]string{},
		sessions:  map[string]int{},
		Errors:    map[string]error{},
	}
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		p.users[u.ID] = u
		p.sessions[u.ID] = 1
	}

	return p
}

func (p *MemoryProvider) Name() string {
	return "memory"
}

func (p *MemoryProvider) ListUsers(_ context.Context, keyword string) ([]zcpv1.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors["ListUsers"]; err != nil {
		return nil, err
	}

	var users []zcpv1.IdentityUser
	for _, u := range p.users {
		if keyword == "" || strings.Contains(u.Username, keyword) || strings.Contains(u.Email, keyword) {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b zcpv1.IdentityUser) int { return cmp.Compare(a.Username, b.Username) })

	return users, nil
}

func (p *MemoryProvider) GetUser(_ context.Context, id string) (*zcpv1.IdentityUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors["GetUser"]; err != nil {
		return nil, err
	}

	u, ok := p.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &u, nil
}

func (p *MemoryProvider) CreateUser(_ context.Context, user zcpv1.IdentityUser) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors["CreateUser"]; err != nil {
		return "", err
	}

	user.ID = uuid.NewString()
	p.users[user.ID] = user
	return user.ID, nil
}

func (p *MemoryProvider) UpdateUser(_ context.Context, user zcpv1.IdentityUser) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors["UpdateUser"]; err != nil {
		return err
	}

	if _, ok := p.users[user.ID]; !ok {
		return identity.ErrUserNotFound
	}
	p.users[user.ID] = user
	return nil
}

func (p *MemoryProvider) DeleteUser(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors["DeleteUser"]; err != nil {
		return err
	}

	if _, ok := p.users[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(p.users, id)
	return nil
}

func (p *MemoryProvider) SetPassword(_ context.Context, id string, credential zcpv1.Credential) error {
	return p.mutate("SetPassword", id, func() { p.passwords[id] = credential })
}

func (p *MemoryProvider) ResetCredentials(_ context.Context, id string, actions []string) error {
	return p.mutate("ResetCredentials", id, func() { p.actions[id] = append(p.actions[id], actions...) })
}

func (p *MemoryProvider) EnableOTP(_ context.Context, id string) error {
	return p.mutate("EnableOTP", id, func() {
		u := p.users[id]
		u.TOTP = true
		p.users[id] = u
	})
}

func (p *MemoryProvider) DisableOTP(_ context.Context, id string) error {
	return p.mutate("DisableOTP", id, func() {
		u := p.users[id]
		u.TOTP = false
		p.users[id] = u
	})
}

func (p *MemoryProvider) Logout(_ context.Context, id string) error {
	return p.mutate("Logout", id, func() { p.sessions[id] = 0 })
}

// Password returns the last credential set for id.
func (p *MemoryProvider) Password(id string) (zcpv1.Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.passwords[id]
	return c, ok
}

// RequiredActions returns the actions requested for id.
func (p *MemoryProvider) RequiredActions(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.actions[id])
}

// Sessions returns the number of open sessions of id.
func (p *MemoryProvider) Sessions(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[id]
}

func (p *MemoryProvider) mutate(method, id string, fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Errors[method]; err != nil {
		return err
	}

	if _, ok := p.users[id]; !ok {
		return identity.ErrUserNotFound
	}
	fn()
	return nil
}
