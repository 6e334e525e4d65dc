package usrrepo

import (
	"context"

	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/testutil"
)

type MockRepo struct {
	CreateFunc func(ctx context.Context, user *user.User) error
	GetFunc    func(ctx context.Context, username string) (user.User, error)
	DeleteFunc func(ctx context.Context, username string) error
	*testutil.CallWatcher
}

func NewMockRepo() *MockRepo {
	return &MockRepo{
		CreateFunc:  func(ctx context.Context, user *user.User) error { return nil },
		GetFunc:     func(ctx context.Context, username string) (user.User, error) { return user.User{}, nil },
		DeleteFunc:  func(ctx context.Context, username string) error { return nil },
		CallWatcher: testutil.NewCallWatcher(),
	}
}

func (r *MockRepo) Create(ctx context.Context, user *user.User) error {
	r.AddCall(ctx, user)
	return r.CreateFunc(ctx, user)
}

func (r *MockRepo) Get(ctx context.Context, username string) (user.User, error) {
	r.AddCall(ctx, username)
	return r.GetFunc(ctx, username)
}

func (r *MockRepo) Delete(ctx context.Context, username string) error {
	r.AddCall(ctx, username)
	return r.DeleteFunc(ctx, username)
}
