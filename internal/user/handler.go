package user

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"go-chat/internal/httpapi"
)

// Directory is what the handler needs from the user store.
type Directory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, username, phone string) (*User, error)
}

type Handler struct {
	users    Directory
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(users Directory, log zerolog.Logger) *Handler {
	return &Handler{
		users:    users,
		validate: validator.New(),
		log:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/users", h.List)
	r.Post("/users/create", h.Create)
	r.Get("/users/{user_id}", h.GetByID)
	r.Get("/users/phone/{user_phone}", h.GetByPhone)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("listing users")
		httpapi.Internal(w)
		return
	}

	if len(users) == 0 {
		httpapi.NotFound(w, "No user available at the moment.")
		return
	}
	httpapi.JSON(w, http.StatusOK, users)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpapi.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	u, err := h.users.Create(r.Context(), req.Username, req.Phone)
	if err != nil {
		h.log.Error().Err(err).Str("username", req.Username).Msg("creating user")
		httpapi.Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	httpapi.JSON(w, http.StatusOK, u)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "user_id")

	u, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", id).Msg("fetching user")
		httpapi.Internal(w)
		return
	}

	if u == nil {
		httpapi.NotFound(w, fmt.Sprintf("No user found with id: %s", id))
		return
	}
	httpapi.JSON(w, http.StatusOK, u)
}

func (h *Handler) GetByPhone(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "user_phone")

	u, err := h.users.FindByPhone(r.Context(), phone)
	if err != nil {
		h.log.Error().Err(err).Str("phone", phone).Msg("fetching user")
		httpapi.Internal(w)
		return
	}

	if u == nil {
		httpapi.NotFound(w, fmt.Sprintf("No user found with phone: %s", phone))
		return
	}
	httpapi.JSON(w, http.StatusOK, u)
}
