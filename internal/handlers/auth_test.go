package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"portfolio/internal/db"
	"portfolio/internal/db/dbtest"
	"portfolio/internal/middleware"
	"portfolio/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"
)

// fakeGoogle 本地模拟 token 和 userinfo 接口
func fakeGoogle(t *testing.T, verified bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "good-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(services.GoogleProfile{
			ID:            "42",
			Email:         "Grace@Example.com",
			VerifiedEmail: verified,
			GivenName:     "Grace",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type authFixture struct {
	engine *gin.Engine
	store  *db.Store
	users  *services.UserService
}

func newAuthFixture(t *testing.T, google *httptest.Server) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := dbtest.New(t)
	log := zaptest.NewLogger(t)
	authors, err := services.NewAuthorDirectory(st, 100, time.Minute, log)
	require.NoError(t, err)
	users, err := services.NewUserService(st, authors, log)
	require.NoError(t, err)

	var conf *oauth2.Config
	if google != nil {
		conf = &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://example.test/auth/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  google.URL + "/auth",
				TokenURL: google.URL + "/token",
			},
		}
	}
	h := NewAuthHandler(users, conf, log)
	if google != nil {
		h.userInfoURL = google.URL + "/userinfo"
	}

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	html := multitemplate.NewRenderer()
	html.AddFromString("auth/login.html", `login:{{.Error}}`)
	html.AddFromString("error.html", `error:{{.Error}}`)
	r.HTMLRender = html
	r.Use(middleware.LoadUser(users, nil, nil, log))

	r.GET("/login", h.ShowLogin)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)
	r.GET("/auth/google", h.GoogleLogin)
	r.GET("/auth/google/callback", h.GoogleCallback)
	r.GET("/api/me", h.Me)

	return &authFixture{engine: r, store: st, users: users}
}

func (f *authFixture) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func meID(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var out struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	if out.User == nil {
		return nil
	}
	return out.User["id"]
}

func TestLocalLoginSession(t *testing.T) {
	f := newAuthFixture(t, nil)
	require.NoError(t, f.users.SeedOwner(context.Background(), "owner@example.com", "Owner", "hunter22"))

	post := func(password string) *httptest.ResponseRecorder {
		form := url.Values{"email": {"Owner@Example.com"}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		f.engine.ServeHTTP(w, req)
		return w
	}

	w := post("wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")

	w = post("hunter22")
	require.Equal(t, http.StatusFound, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	assert.Equal(t, "local:owner@example.com", meID(t, f.get("/api/me", cookies)))

	// 已登录访问登录页跳回首页
	w = f.get("/login", cookies)
	assert.Equal(t, http.StatusFound, w.Code)

	w = f.get("/logout", cookies)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Nil(t, meID(t, f.get("/api/me", w.Result().Cookies())))
}

func TestGoogleLoginFlow(t *testing.T) {
	f := newAuthFixture(t, fakeGoogle(t, true))

	w := f.get("/auth/google", nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	cookies := w.Result().Cookies()

	// state 不匹配
	w = f.get("/auth/google/callback?state=forged&code=good-code", cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 上一次回调已经作废了 state，需要重新发起
	w = f.get("/auth/google", nil)
	loc, _ = url.Parse(w.Header().Get("Location"))
	state = loc.Query().Get("state")
	cookies = w.Result().Cookies()

	w = f.get("/auth/google/callback?state="+url.QueryEscape(state)+"&code=good-code", cookies)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/", w.Header().Get("Location"))
	// 一次响应只下发一个 session cookie
	assert.Len(t, w.Header().Values("Set-Cookie"), 1)

	assert.Equal(t, "google:42", meID(t, f.get("/api/me", w.Result().Cookies())))

	u, err := f.store.GetUser(context.Background(), "google:42")
	require.NoError(t, err)
	assert.Equal(t, "Grace", u.Name)
	assert.Equal(t, "grace@example.com", u.Email)
}

func TestGoogleLoginUnverifiedEmail(t *testing.T) {
	f := newAuthFixture(t, fakeGoogle(t, false))

	w := f.get("/auth/google", nil)
	loc, _ := url.Parse(w.Header().Get("Location"))
	state := loc.Query().Get("state")

	w = f.get("/auth/google/callback?state="+url.QueryEscape(state)+"&code=good-code", w.Result().Cookies())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not verified")
}

func TestGoogleLoginDisabled(t *testing.T) {
	f := newAuthFixture(t, nil)
	w := f.get("/auth/google", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
