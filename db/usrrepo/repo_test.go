package usrrepo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/db"
	"github.com/sksmith/harvest-ledger/db/usrrepo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCreateCachesUser(t *testing.T) {
	conn := db.NewMockConn()
	conn.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
		return pgconn.CommandTag("INSERT 0 1"), nil
	}
	repo := usrrepo.NewPostgresRepo(conn, 8)

	u := &user.User{Username: "grower", HashedPassword: "hash", OwnerID: "farm-1", Role: ledger.RoleProducer, Created: time.Now()}
	require.NoError(t, repo.Create(context.Background(), u))

	got, err := repo.Get(context.Background(), "grower")
	require.NoError(t, err)
	assert.Equal(t, *u, got)

	conn.VerifyCount("Exec", 1, t)
	conn.VerifyCount("QueryRow", 0, t)
}

func TestPostgresGet(t *testing.T) {
	tests := []struct {
		name    string
		rowErr  error
		wantErr error
	}{
		{name: "missing user", rowErr: pgx.ErrNoRows, wantErr: core.ErrNotFound},
		{name: "database failure", rowErr: errors.New("connection reset")},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conn := db.NewMockConn()
			conn.QueryRowFunc = func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
				return db.MockRow{Err: test.rowErr}
			}
			repo := usrrepo.NewPostgresRepo(conn, 8)

			_, err := repo.Get(context.Background(), "grower")
			require.Error(t, err)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NotErrorIs(t, err, core.ErrNotFound)
			}
			conn.VerifyCount("QueryRow", 1, t)
		})
	}
}

func TestPostgresDelete(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		wantErr error
	}{
		{name: "user deleted", tag: "DELETE 1"},
		{name: "no such user", tag: "DELETE 0", wantErr: core.ErrNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conn := db.NewMockConn()
			conn.ExecFunc = func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
				return pgconn.CommandTag(test.tag), nil
			}
			repo := usrrepo.NewPostgresRepo(conn, 8)

			err := repo.Delete(context.Background(), "grower")
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := usrrepo.NewMemoryRepo()

	u := &user.User{Username: "orders", HashedPassword: "hash", Role: ledger.RoleOrderService}
	require.NoError(t, repo.Create(ctx, u))
	assert.Error(t, repo.Create(ctx, u))

	got, err := repo.Get(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, *u, got)

	require.NoError(t, repo.Delete(ctx, "orders"))
	_, err = repo.Get(ctx, "orders")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "orders"), core.ErrNotFound)
}
