package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"socialnet/infrastructure/cache"
	"socialnet/internal/usecase"
	"socialnet/pkg/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "http-access-secret"
	testRefreshSecret = "http-refresh-secret"
)

type testServer struct {
	router   http.Handler
	users    *memUserRepo
	posts    *memPostRepo
	storage  *memStorage
	manager  *jwt.JWTManager
	feedHits atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	manager, err := jwt.NewJWTManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	ts := &testServer{
		users:   newMemUserRepo(),
		posts:   &memPostRepo{},
		storage: &memStorage{},
		manager: manager,
	}

	authUc := usecase.NewAuthUsecase(ts.users, manager)
	postUc := usecase.NewPostUsecase(ts.posts, ts.storage, nil, 4)
	feedUc := usecase.NewFeedUsecase(ts.posts)

	visitors := cache.NewMemCache(0)
	t.Cleanup(visitors.Close)

	r := chi.NewRouter()
	MapHttpRoutes(r, Handlers{
		Auth:   NewAuthHandler(authUc, NewCookiePolicy(false, manager.RefreshTokenDuration()), nil),
		Post:   NewPostHandler(postUc, feedUc, 4, nil),
		Health: NewHealthHandler(stubPinger{}),
		Feed: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ts.feedHits.Add(1)
			w.WriteHeader(http.StatusOK)
		}),
		Session:     NewAuthMiddleware(authUc, nil),
		AuthLimiter: NewRateLimiter(visitors, 100, 100),
	})
	ts.router = r
	return ts
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type session struct {
	UserId      string
	AccessToken string
	Cookie      *http.Cookie
}

func (ts *testServer) do(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshCookieName {
			return c
		}
	}
	return nil
}

func (ts *testServer) register(t *testing.T, email string) session {
	t.Helper()
	rec, env := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Test User","email":"`+email+`","password":"password123"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		User struct {
			Id string `json:"id"`
		} `json:"user"`
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	return session{UserId: data.User.Id, AccessToken: data.AccessToken, Cookie: cookie}
}

func TestRegister_SetsRefreshCookie(t *testing.T) {
	ts := newTestServer(t)
	s := ts.register(t, "ana@example.com")

	assert.True(t, s.Cookie.HttpOnly)
	assert.Equal(t, "/", s.Cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, s.Cookie.SameSite)
	assert.False(t, s.Cookie.Secure)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), s.Cookie.MaxAge)

	userId, err := ts.manager.Verify(s.AccessToken, testAccessSecret)
	require.NoError(t, err)
	assert.Equal(t, s.UserId, userId)

	userId, err = ts.manager.Verify(s.Cookie.Value, testRefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, s.UserId, userId)
}

func TestRegister_ResponseOmitsPassword(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Ben","email":"ben@example.com","password":"password123"}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "dup@example.com")

	rec, env := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Again","email":"dup@example.com","password":"password123"}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	assert.Nil(t, refreshCookie(rec))
	assert.NotContains(t, rec.Body.String(), "accessToken")
}

func TestRegister_RejectsBadBodies(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{
		`{"name":"A","email":"a@example.com","password":"password123","admin":true}`,
		`not json`,
		`{"name":"A","email":"a@example.com","password":"password123"} {}`,
		`{"name":"A","email":"a@example.com","password":"short"}`,
	} {
		rec, env := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/register", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.False(t, env.Success)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	registered := ts.register(t, "cat@example.com")

	rec, env := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"cat@example.com","password":"password123"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	userId, err := ts.manager.ValidateRefreshToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, registered.UserId, userId)
	_, err = ts.manager.ValidateAccessToken(cookie.Value)
	assert.Error(t, err)
}

func TestLogin_WrongPasswordSetsNoCookie(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "dan@example.com")

	rec, env := ts.do(jsonRequest(http.MethodPost, "/api/v1/auth/login",
		`{"email":"dan@example.com","password":"wrong-password"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, usecase.ErrInvalidCredentials.Error(), env.Message)
	assert.Nil(t, refreshCookie(rec))
}

func TestRefresh_RotatesCookie(t *testing.T) {
	ts := newTestServer(t)
	s := ts.register(t, "eve@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(s.Cookie)
	rec, env := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	userId, err := ts.manager.ValidateRefreshToken(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, s.UserId, userId)
}

func TestRefresh_InvalidCookieIsCleared(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "garbage"})
	rec, _ := ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)

	rec, _ = ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	ts := newTestServer(t)
	s := ts.register(t, "fin@example.com")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	rec, env := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	cookie := refreshCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestLogout_RequiresSession(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCookiePolicy_Production(t *testing.T) {
	p := NewCookiePolicy(true, time.Hour)
	assert.True(t, p.Secure)
	assert.Equal(t, http.SameSiteNoneMode, p.SameSite)
}
