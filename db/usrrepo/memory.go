package usrrepo

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/user"
)

type memRepo struct {
	mu    sync.RWMutex
	users map[string]user.User
}

func NewMemoryRepo() user.Repository {
	return &memRepo{users: make(map[string]user.User)}
}

func (r *memRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return errors.Errorf("user %s already exists", u.Username)
	}
	r.users[u.Username] = *u
	return nil
}

func (r *memRepo) Get(_ context.Context, username string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return user.User{}, errors.WithStack(core.ErrNotFound)
	}
	return u, nil
}

func (r *memRepo) Delete(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; !ok {
		return errors.WithStack(core.ErrNotFound)
	}
	delete(r.users, username)
	return nil
}
