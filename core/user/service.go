package user

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUser        = errors.New("user: invalid user")
	ErrInvalidCredentials = errors.New("user: invalid credentials")
)

const (
	minPasswordLength = 8
	// bcrypt ignores anything past 72 bytes
	maxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type Service interface {
	Create(ctx context.Context, user CreateUserRequest) (User, error)
	Get(ctx context.Context, username string) (User, error)
	Delete(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (User, error)
}

type service struct {
	repo Repository
}

func (s *service) Get(ctx context.Context, username string) (User, error) {
	return s.repo.Get(ctx, username)
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if err := validate(req); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PlainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.WithStack(err)
	}
	user := &User{
		Username:       req.Username,
		HashedPassword: string(hash),
		OwnerID:        req.OwnerID,
		Role:           req.Role,
		Created:        time.Now().UTC(),
	}

	log.Info().Str("username", user.Username).Str("role", string(user.Role)).Msg("creating user")

	err = s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}

func validate(req CreateUserRequest) error {
	if !usernamePattern.MatchString(req.Username) {
		return errors.WithMessage(ErrInvalidUser, "username must be 3 to 64 letters, digits, dots, dashes or underscores")
	}
	if len(req.PlainTextPassword) < minPasswordLength || len(req.PlainTextPassword) > maxPasswordLength {
		return errors.WithMessagef(ErrInvalidUser, "password must be %d to %d characters", minPasswordLength, maxPasswordLength)
	}
	switch req.Role {
	case ledger.RoleProducer:
		if req.OwnerID == "" {
			return errors.WithMessage(ErrInvalidUser, "producers require an owner id")
		}
	case ledger.RoleOrderService, ledger.RoleAdmin:
	default:
		return errors.WithMessagef(ErrInvalidUser, "unknown role %q", req.Role)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, username string) error {
	return s.repo.Delete(ctx, username)
}

func (s *service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		return User{}, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
	if err != nil {
		return User{}, errors.WithStack(ErrInvalidCredentials)
	}

	return u, nil
}

type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, username string) (User, error)
	Delete(ctx context.Context, username string) error
}
