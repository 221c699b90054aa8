package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-clinic/meridian/internal/auth"
	"github.com/meridian-clinic/meridian/internal/shared"
)

// fakeRepo is an in-memory auth.Repository mirroring the store's
// uniqueness and atomic-update guarantees.
type fakeRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*auth.Account
	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: make(map[uuid.UUID]*auth.Account)}
}

func (r *fakeRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) Create(ctx context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return shared.ErrEmailTaken
		}
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *fakeRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, ip, ua string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	t := at
	a.LastLoginAt = &t
	return nil
}

func (r *fakeRepo) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	a.ResetToken = token
	e := expires
	a.ResetTokenExpires = &e
	return nil
}

func (r *fakeRepo) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ResetToken == token && token != "" && a.ResetTokenExpires != nil && a.ResetTokenExpires.After(now) {
			a.PasswordHash = newPasswordHash
			a.ResetToken = ""
			a.ResetTokenExpires = nil
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ConsumeVerificationToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.VerificationToken == token && token != "" {
			a.EmailVerified = true
			a.VerificationToken = ""
			return true, nil
		}
	}
	return false, nil
}

// get returns the stored record for direct inspection and mutation.
func (r *fakeRepo) get(id uuid.UUID) *auth.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *fakeRepo) byEmail(email string) *auth.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return a
		}
	}
	return nil
}

type sentMail struct {
	kind  string
	email string
	name  string
	token string
}

// fakeNotifier records dispatched notifications.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMail
	failWith error
}

func (n *fakeNotifier) SendVerificationEmail(ctx context.Context, email, name, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.sent = append(n.sent, sentMail{kind: "verification", email: email, name: name, token: token})
	return nil
}

func (n *fakeNotifier) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.sent = append(n.sent, sentMail{kind: "reset", email: email, token: token})
	return nil
}

func (n *fakeNotifier) last() *sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return nil
	}
	m := n.sent[len(n.sent)-1]
	return &m
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
