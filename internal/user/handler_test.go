package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"go-chat/internal/httpapi"
)

type stubDirectory struct {
	users  []User
	byID   map[string]*User
	byTel  map[string]*User
	builds []CreateUserRequest
}

func (s *stubDirectory) FindByID(_ context.Context, id string) (*User, error) {
	return s.byID[id], nil
}

func (s *stubDirectory) FindByPhone(_ context.Context, phone string) (*User, error) {
	return s.byTel[phone], nil
}

func (s *stubDirectory) List(context.Context) ([]User, error) {
	return s.users, nil
}

func (s *stubDirectory) Create(_ context.Context, username, phone string) (*User, error) {
	s.builds = append(s.builds, CreateUserRequest{Username: username, Phone: phone})
	return &User{ID: "fresh", Username: username, Phone: phone}, nil
}

func newTestRouter(users Directory) http.Handler {
	h := NewHandler(users, zerolog.Nop())
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestHandler_List_EmptyIs404WithJSONBody(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(&stubDirectory{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))

	req.Equal(http.StatusNotFound, w.Code)
	var resp httpapi.ErrorResponse
	req.NoError(json.NewDecoder(w.Body).Decode(&resp))
	req.Equal(http.StatusNotFound, resp.Error)
	req.Equal("No user available at the moment.", resp.Message)
}

func TestHandler_GetByID_UnknownUserIs404(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(&stubDirectory{byID: map[string]*User{}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u-missing", nil))

	req.Equal(http.StatusNotFound, w.Code)
	var resp httpapi.ErrorResponse
	req.NoError(json.NewDecoder(w.Body).Decode(&resp))
	req.Contains(resp.Message, "u-missing")
}

func TestHandler_GetByPhone_ReturnsUser(t *testing.T) {
	req := require.New(t)
	router := newTestRouter(&stubDirectory{byTel: map[string]*User{
		"+15550001": {ID: "u1", Username: "alice", Phone: "+15550001"},
	}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/phone/+15550001", nil))

	req.Equal(http.StatusOK, w.Code)
	var u User
	req.NoError(json.NewDecoder(w.Body).Decode(&u))
	req.Equal("alice", u.Username)
}

func TestHandler_Create_ValidatesPayload(t *testing.T) {
	req := require.New(t)
	dir := &stubDirectory{}
	router := newTestRouter(dir)

	// Missing phone is rejected before touching the store
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/create",
		strings.NewReader(`{"username":"alice"}`)))
	req.Equal(http.StatusUnprocessableEntity, w.Code)
	req.Empty(dir.builds)

	// A complete payload goes through
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/create",
		strings.NewReader(`{"username":"alice","phone":"+15550001"}`)))
	req.Equal(http.StatusOK, w.Code)
	req.Len(dir.builds, 1)
}
