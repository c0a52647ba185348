package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/peny/internal/common"
	"github.com/dmitrijs2005/peny/internal/logging"
	"github.com/dmitrijs2005/peny/internal/server/models"
	"github.com/dmitrijs2005/peny/internal/server/services"
	"github.com/dmitrijs2005/peny/internal/server/supervisor"
)

const (
	goodToken = "good-access"

	knownID = "6f1c2a4e-8d3b-4f5a-9c7e-2b1d0e4f6a8c"
	boomID  = "00000000-0000-4000-8000-0000000000bb"
)

type stubSessions struct {
	registerErr error
	lastLogout  string
}

func (s *stubSessions) Authenticate(_ context.Context, token string) (string, error) {
	if token == goodToken {
		return "acc-1", nil
	}
	return "", common.ErrorUnauthorized
}

func (s *stubSessions) Register(_ context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &services.AuthResult{
		AccessToken:  "a",
		RefreshToken: "r",
		User:         models.PublicAccount{ID: "acc-1", Name: in.Name, Email: in.Email, Role: models.DefaultRole},
	}, nil
}

func (s *stubSessions) Login(_ context.Context, email, password string) (*services.AuthResult, error) {
	if password != "password123" {
		return nil, common.ErrorUnauthorized
	}
	return &services.AuthResult{AccessToken: "a", RefreshToken: "r2"}, nil
}

func (s *stubSessions) Refresh(_ context.Context, token string) (*services.AuthResult, error) {
	return nil, common.ErrorUnauthorized
}

func (s *stubSessions) Logout(_ context.Context, token string) (*services.Message, error) {
	s.lastLogout = token
	return &services.Message{Message: "Logged out successfully"}, nil
}

func (s *stubSessions) GetProfile(_ context.Context, id string) (*models.PublicAccount, error) {
	return &models.PublicAccount{ID: id, Name: "Alice", Email: "a@x.com", Role: models.RoleSecretary}, nil
}

type stubAccounts struct {
	lastFilter models.AccountFilter
	lastActor  string
	calls      []string
}

func (s *stubAccounts) Create(_ context.Context, in services.CreateAccountInput, actor string) (*models.PublicAccount, error) {
	s.lastActor = actor
	return &models.PublicAccount{ID: "acc-2", Name: in.Name, Email: in.Email, Role: in.Role}, nil
}

func (s *stubAccounts) List(_ context.Context, f models.AccountFilter) (*models.Page[models.PublicAccount], error) {
	s.lastFilter = f
	p := models.NewPage[models.PublicAccount](nil, f.Page, f.Size, 0)
	return &p, nil
}

func (s *stubAccounts) Get(_ context.Context, id string) (*models.PublicAccount, error) {
	s.calls = append(s.calls, "get "+id)
	if id == boomID {
		panic("boom")
	}
	return nil, common.ErrorNotFound
}

func (s *stubAccounts) Update(_ context.Context, id string, patch models.AccountPatch, actor string) (*models.PublicAccount, error) {
	s.calls = append(s.calls, "update "+id)
	return nil, common.ErrorConflict
}

func (s *stubAccounts) Delete(_ context.Context, id, actor string) (*services.Message, error) {
	s.calls = append(s.calls, "delete "+id)
	s.lastActor = actor
	return &services.Message{Message: "User deleted successfully"}, nil
}

type stubPhotos struct{}

func (stubPhotos) PresignUpload(_ context.Context, id string) (*services.PhotoUpload, error) {
	if id != "acc-1" {
		return nil, errors.New("unexpected account")
	}
	return &services.PhotoUpload{Key: "photos/acc-1/x", UploadURL: "http://s3/put", ExpiresIn: 900}, nil
}

type stubState struct{ st supervisor.State }

func (s stubState) State() supervisor.State { return s.st }

type observation struct {
	method, route string
	status        int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	r.obs = append(r.obs, observation{method, route, status})
	r.mu.Unlock()
}

type testAPI struct {
	handler  http.Handler
	sessions *stubSessions
	accounts *stubAccounts
	observer *recordingObserver
}

func newTestAPI(state supervisor.State) *testAPI {
	api := &testAPI{
		sessions: &stubSessions{},
		accounts: &stubAccounts{},
		observer: &recordingObserver{},
	}
	api.handler = NewRouter(Deps{
		Sessions: api.sessions,
		Accounts: api.accounts,
		Photos:   stubPhotos{},
		DB:       stubState{state},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
		Observer: api.observer,
		Logger:   logging.Nop(),
	})
	return api
}

func (a *testAPI) do(method, path, body, token string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		r.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func TestRegisterRoute(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	w := api.do("POST", "/auth/register", `{"name":"Alice","email":"a@x.com","password":"password123"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	var res services.AuthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "a", res.AccessToken)
	assert.Equal(t, "Alice", res.User.Name)
	assert.Contains(t, w.Body.String(), `"photoUrl":null`)

	api.sessions.registerErr = common.ErrorConflict
	w = api.do("POST", "/auth/register", `{"name":"Alice","email":"a@x.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errorBody{StatusCode: 409, Message: "Email already exists", Error: "Conflict"}, decodeError(t, w))

	w = api.do("POST", "/auth/register", `{"name":"A","email":"a@x.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name must be at least 2 characters", decodeError(t, w).Message)
}

func TestLoginRoute(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	w := api.do("POST", "/auth/login", `{"email":"a@x.com","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, w).Error)

	w = api.do("POST", "/auth/login", `{"email":"a@x.com","password":"password123"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefreshAndLogoutRoutes(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	w := api.do("POST", "/auth/refresh", `{"refreshToken":"stale"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do("POST", "/auth/refresh", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do("POST", "/auth/logout", `{"refreshToken":"whatever"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "whatever", api.sessions.lastLogout)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())

	w = api.do("POST", "/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMeRequiresBearer(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	assert.Equal(t, http.StatusUnauthorized, api.do("GET", "/auth/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, api.do("GET", "/auth/me", "", "bogus").Code)

	r := httptest.NewRequest("GET", "/auth/me", nil)
	r.Header.Set(common.AuthorizationHeaderName, "Basic "+goodToken)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do("GET", "/auth/me", "", goodToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"acc-1","name":"Alice","email":"a@x.com","role":"SECRETARY","photoUrl":null}`, w.Body.String())
}

func TestUsersRoutes(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	assert.Equal(t, http.StatusUnauthorized, api.do("GET", "/users", "", "").Code)

	w := api.do("GET", "/users?page=2&size=5&search=al", "", goodToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AccountFilter{Page: 2, Size: 5, Search: "al"}, api.accounts.lastFilter)
	assert.Contains(t, w.Body.String(), `"items":[]`)

	w = api.do("GET", "/users?size=500", "", goodToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do("POST", "/users", `{"name":"Bob","email":"bob@x.com","password":"secret1","role":"ADMIN"}`, goodToken)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "acc-1", api.accounts.lastActor)

	assert.Equal(t, http.StatusNotFound, api.do("GET", "/users/"+knownID, "", goodToken).Code)
	assert.Equal(t, http.StatusConflict, api.do("PATCH", "/users/"+knownID, `{"email":"carol@x.com"}`, goodToken).Code)
	assert.Equal(t, http.StatusOK, api.do("DELETE", "/users/"+strings.ToUpper(knownID), "", goodToken).Code)
	assert.Equal(t, []string{"get " + knownID, "update " + knownID, "delete " + knownID}, api.accounts.calls)

	w = api.do("POST", "/users/me/photo-upload", "", goodToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"key":"photos/acc-1/x","uploadUrl":"http://s3/put","photoUrl":"","expiresIn":900}`, w.Body.String())
}

func TestUsersRoutes_MalformedIDIsNotFound(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	for _, req := range []struct{ method, body string }{
		{"GET", ""},
		{"PATCH", `{"name":"Carol"}`},
		{"DELETE", ""},
	} {
		w := api.do(req.method, "/users/not-a-uuid", req.body, goodToken)
		assert.Equal(t, http.StatusNotFound, w.Code, req.method)
		assert.JSONEq(t, `{"statusCode":404,"message":"User not found","error":"Not Found"}`, w.Body.String(), req.method)
	}
	assert.Empty(t, api.accounts.calls)
}

func TestPanicIsRecovered(t *testing.T) {
	api := newTestAPI(supervisor.Connected)
	w := api.do("GET", "/users/"+boomID, "", goodToken)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthz(t *testing.T) {
	w := newTestAPI(supervisor.Connected).do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"connected"}`, w.Body.String())

	w = newTestAPI(supervisor.Reconnecting).do("GET", "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"state":"reconnecting"}`, w.Body.String())
}

func TestMetricsAndInstrumentation(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	w := api.do("GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(common.RequestIDHeaderName))

	api.do("GET", "/users/"+knownID, "", goodToken)
	api.do("GET", "/nowhere", "", "")

	api.observer.mu.Lock()
	defer api.observer.mu.Unlock()
	require.Len(t, api.observer.obs, 3)
	assert.Equal(t, observation{"GET", "/metrics", 200}, api.observer.obs[0])
	assert.Equal(t, observation{"GET", "/users/{id}", 404}, api.observer.obs[1])
	assert.Equal(t, 404, api.observer.obs[2].status)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newTestAPI(supervisor.Connected)

	r := httptest.NewRequest("GET", "/healthz", nil)
	r.Header.Set(common.RequestIDHeaderName, "req-123")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, r)
	assert.Equal(t, "req-123", w.Header().Get(common.RequestIDHeaderName))
}
