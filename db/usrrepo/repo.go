package usrrepo

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/user"
	"github.com/sksmith/harvest-ledger/db"

	lru "github.com/hashicorp/golang-lru"
)

const DefaultCacheSize = 256

type dbRepo struct {
	conn core.Conn
	c    *lru.Cache
}

func NewPostgresRepo(conn core.Conn, cacheSize int) user.Repository {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	l, err := lru.New(cacheSize)
	if err != nil {
		log.Warn().Err(err).Msg("unable to configure cache")
	}
	return &dbRepo{
		conn: conn,
		c:    l,
	}
}

func (r *dbRepo) Create(ctx context.Context, user *user.User) error {
	m := db.StartMetric("CreateUser")

	_, err := r.conn.Exec(ctx, `
		INSERT INTO users (username, password, owner_id, role, created_at)
		           VALUES ($1, $2, $3, $4, $5);`,
		user.Username, user.HashedPassword, user.OwnerID, user.Role, user.Created)
	if err != nil {
		m.Complete(err)
		return errors.WithStack(err)
	}
	r.cache(*user)
	m.Complete(nil)
	return nil
}

func (r *dbRepo) Get(ctx context.Context, username string) (user.User, error) {
	u, ok := r.getcache(username)
	if ok {
		return u, nil
	}

	m := db.StartMetric("GetUser")
	query := `SELECT username, password, owner_id, role, created_at FROM users WHERE username = $1`

	log.Debug().Str("query", query).Str("username", username).Msg("getting user")

	err := r.conn.QueryRow(ctx, query, username).
		Scan(&u.Username, &u.HashedPassword, &u.OwnerID, &u.Role, &u.Created)
	if err != nil {
		m.Complete(err)
		if err == pgx.ErrNoRows {
			return user.User{}, errors.WithStack(core.ErrNotFound)
		}
		return user.User{}, errors.WithStack(err)
	}

	r.cache(u)
	m.Complete(nil)
	return u, nil
}

func (r *dbRepo) Delete(ctx context.Context, username string) error {
	m := db.StartMetric("DeleteUser")

	ct, err := r.conn.Exec(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		m.Complete(err)
		return errors.WithStack(err)
	}
	m.Complete(nil)

	r.uncache(username)
	if ct.RowsAffected() == 0 {
		return errors.WithStack(core.ErrNotFound)
	}
	return nil
}

func (r *dbRepo) cache(u user.User) {
	if r.c == nil {
		return
	}
	r.c.Add(u.Username, u)
}

func (r *dbRepo) uncache(username string) {
	if r.c == nil {
		return
	}
	r.c.Remove(username)
}

func (r *dbRepo) getcache(username string) (user.User, bool) {
	if r.c == nil {
		return user.User{}, false
	}

	v, ok := r.c.Get(username)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
