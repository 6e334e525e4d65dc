package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/harvest-ledger/core"
	"github.com/sksmith/harvest-ledger/core/ledger"
	"github.com/sksmith/harvest-ledger/core/user"
)

type UserService interface {
	Create(ctx context.Context, user user.CreateUserRequest) (user.User, error)
	Get(ctx context.Context, username string) (user.User, error)
	Delete(ctx context.Context, username string) error
	Login(ctx context.Context, username, password string) (user.User, error)
}

type UserApi struct {
	service UserService
}

func NewUserApi(service UserService) *UserApi {
	return &UserApi{service: service}
}

func (a *UserApi) ConfigureRouter(r chi.Router) {
	r.Get("/me", a.Me)
	r.With(AdminOnly).Post("/", a.Create)
	r.With(AdminOnly).Get("/{username}", a.Get)
	r.With(AdminOnly).Delete("/{username}", a.Delete)
}

type CreateUserRequestDto struct {
	*user.CreateUserRequest
	Password string `json:"password,omitempty"`
}

func (p *CreateUserRequestDto) Bind(_ *http.Request) error {
	if p.CreateUserRequest == nil || p.Username == "" || p.Password == "" {
		return errors.New("missing required field(s)")
	}

	p.CreateUserRequest.PlainTextPassword = p.Password

	return nil
}

// UserResponse never carries the password hash.
type UserResponse struct {
	Username string      `json:"username"`
	OwnerID  string      `json:"ownerId,omitempty"`
	Role     ledger.Role `json:"role"`
	Created  time.Time   `json:"created"`
}

func NewUserResponse(u user.User) *UserResponse {
	return &UserResponse{Username: u.Username, OwnerID: u.OwnerID, Role: u.Role, Created: u.Created}
}

func (ur *UserResponse) Render(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

func (a *UserApi) Create(w http.ResponseWriter, r *http.Request) {
	data := &CreateUserRequestDto{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	u, err := a.service.Create(r.Context(), *data.CreateUserRequest)
	if err != nil {
		if errors.Is(err, user.ErrInvalidUser) {
			Render(w, r, ErrInvalidRequest(err))
			return
		}
		log.Err(err).Str("username", data.Username).Msg("failed to create user")
		Render(w, r, ErrInternalServer)
		return
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewUserResponse(u))
}

func (a *UserApi) Me(w http.ResponseWriter, r *http.Request) {
	usr, ok := r.Context().Value(CtxKeyUser).(user.User)
	if !ok {
		authErr(w)
		return
	}
	Render(w, r, NewUserResponse(usr))
}

func (a *UserApi) Get(w http.ResponseWriter, r *http.Request) {
	u, err := a.service.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	Render(w, r, NewUserResponse(u))
}

func (a *UserApi) Delete(w http.ResponseWriter, r *http.Request) {
	if err := a.service.Delete(r.Context(), chi.URLParam(r, "username")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *UserApi) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrNotFound) {
		Render(w, r, ErrNotFound)
		return
	}
	log.Err(err).Str("username", chi.URLParam(r, "username")).Send()
	Render(w, r, ErrInternalServer)
}
