package user_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/db/usrrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGet(t *testing.T) {
	usr := user.User{Username: "someuser", HashedPassword: "somehashedpassword", OwnerID: "farm-1", Role: ledger.RoleProducer, Created: time.Now()}
	tests := []struct {
		name     string
		username string

		getFunc func(ctx context.Context, username string) (user.User, error)

		wantUser user.User
		wantErr  bool
	}{
		{
			name:     "user is returned",
			username: "someuser",

			getFunc: func(ctx context.Context, username string) (user.User, error) {
				return usr, nil
			},

			wantUser: usr,
		},
		{
			name:     "error is returned",
			username: "someuser",

			getFunc: func(ctx context.Context, username string) (user.User, error) {
				return user.User{}, errors.New("some unexpected error")
			},

			wantErr:  true,
			wantUser: user.User{},
		},
	}

	for _, test := range tests {
		mockRepo := usrrepo.NewMockRepo()
		if test.getFunc != nil {
			mockRepo.GetFunc = test.getFunc
		}

		service := user.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.Get(context.Background(), test.username)
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.wantUser, got)
		})
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name    string
		request user.CreateUserRequest

		createFunc func(ctx context.Context, user *user.User) error

		wantUsername    string
		wantRepoCallCnt map[string]int
		wantErr         error
	}{
		{
			name:    "producer is created",
			request: user.CreateUserRequest{Username: "someuser", OwnerID: "farm-1", Role: ledger.RoleProducer, PlainTextPassword: "plaintextpw"},

			wantRepoCallCnt: map[string]int{"Create": 1},
			wantUsername:    "someuser",
		},
		{
			name:    "order service needs no owner",
			request: user.CreateUserRequest{Username: "orders", Role: ledger.RoleOrderService, PlainTextPassword: "plaintextpw"},

			wantRepoCallCnt: map[string]int{"Create": 1},
			wantUsername:    "orders",
		},
		{
			name:    "producer without owner is rejected",
			request: user.CreateUserRequest{Username: "someuser", Role: ledger.RoleProducer, PlainTextPassword: "plaintextpw"},

			wantRepoCallCnt: map[string]int{"Create": 0},
			wantErr:         user.ErrInvalidUser,
		},
		{
			name:    "unknown role is rejected",
			request: user.CreateUserRequest{Username: "someuser", Role: "BUYER", PlainTextPassword: "plaintextpw"},

			wantRepoCallCnt: map[string]int{"Create": 0},
			wantErr:         user.ErrInvalidUser,
		},
		{
			name:    "short password is rejected",
			request: user.CreateUserRequest{Username: "someuser", Role: ledger.RoleAdmin, PlainTextPassword: "short"},

			wantRepoCallCnt: map[string]int{"Create": 0},
			wantErr:         user.ErrInvalidUser,
		},
		{
			name:    "bad username is rejected",
			request: user.CreateUserRequest{Username: "a b", Role: ledger.RoleAdmin, PlainTextPassword: "plaintextpw"},

			wantRepoCallCnt: map[string]int{"Create": 0},
			wantErr:         user.ErrInvalidUser,
		},
	}

	for _, test := range tests {
		mockRepo := usrrepo.NewMockRepo()
		if test.createFunc != nil {
			mockRepo.CreateFunc = test.createFunc
		}

		service := user.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.Create(context.Background(), test.request)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				require.NoError(t, err)
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.HashedPassword), []byte(test.request.PlainTextPassword)))
				assert.Equal(t, test.request.Role, got.Role)
				assert.Equal(t, test.request.OwnerID, got.OwnerID)
			}

			assert.Equal(t, test.wantUsername, got.Username)

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		username string

		deleteFunc func(ctx context.Context, username string) error

		wantRepoCallCnt map[string]int
		wantErr         bool
	}{
		{
			name:            "user is deleted",
			username:        "someuser",
			wantRepoCallCnt: map[string]int{"Delete": 1},
		},
		{
			name:     "error is returned",
			username: "someuser",

			deleteFunc: func(ctx context.Context, username string) error {
				return errors.New("some unexpected error")
			},

			wantRepoCallCnt: map[string]int{"Delete": 1},
			wantErr:         true,
		},
	}

	for _, test := range tests {
		mockRepo := usrrepo.NewMockRepo()
		if test.deleteFunc != nil {
			mockRepo.DeleteFunc = test.deleteFunc
		}

		service := user.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			err := service.Delete(context.Background(), test.username)
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			for f, c := range test.wantRepoCallCnt {
				mockRepo.VerifyCount(f, c, t)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("plaintextpw"), bcrypt.MinCost)
	require.NoError(t, err)

	usr := user.User{Username: "someuser", HashedPassword: string(hash), OwnerID: "farm-1", Role: ledger.RoleProducer, Created: time.Now()}
	tests := []struct {
		name     string
		username string
		password string

		getFunc func(ctx context.Context, username string) (user.User, error)

		wantUsername string
		wantErr      error
	}{
		{
			name:     "correct password",
			username: "someuser",
			password: "plaintextpw",

			getFunc: func(ctx context.Context, username string) (user.User, error) {
				return usr, nil
			},

			wantUsername: "someuser",
		},
		{
			name:     "wrong password",
			username: "someuser",
			password: "wrongpw",

			getFunc: func(ctx context.Context, username string) (user.User, error) {
				return usr, nil
			},

			wantErr: user.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			username: "someuser",
			password: "wrongpw",

			getFunc: func(ctx context.Context, username string) (user.User, error) {
				return user.User{}, core.ErrNotFound
			},

			wantErr: core.ErrNotFound,
		},
	}

	for _, test := range tests {
		mockRepo := usrrepo.NewMockRepo()
		if test.getFunc != nil {
			mockRepo.GetFunc = test.getFunc
		}

		service := user.NewService(mockRepo)

		t.Run(test.name, func(t *testing.T) {
			got, err := service.Login(context.Background(), test.username, test.password)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.wantUsername, got.Username)
		})
	}
}

func TestActor(t *testing.T) {
	u := user.User{Username: "grower", OwnerID: "farm-1", Role: ledger.RoleProducer}

	actor := u.Actor()

	assert.Equal(t, ledger.ActorContext{ActorID: "grower", OwnerID: "farm-1", Role: ledger.RoleProducer}, actor)
	assert.False(t, u.IsAdmin())
	assert.True(t, actor.CanManage("farm-1"))
	assert.False(t, actor.CanManage("farm-2"))
}
