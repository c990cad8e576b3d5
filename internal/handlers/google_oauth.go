package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"portfolio/internal/config"
	"portfolio/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateKey   = "oauth_state"
	googleUserInfo  = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateBytes = 32
)

// GoogleOAuthConfig 未配置 client id/secret 时返回 nil
func GoogleOAuthConfig(cfg *config.Config) *oauth2.Config {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.SiteURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// generateStateToken 生成随机 state token
func generateStateToken() (string, error) {
	b := make([]byte, oauthStateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GoogleLogin 发起 Google OAuth 登录
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.oauth == nil {
		RenderError(c, http.StatusNotFound, "Google login is not configured")
		return
	}
	state, err := generateStateToken()
	if err != nil {
		h.log.Error("Generate oauth state failed", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}

	// state 存入 session，回调时校验
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	h.saveSession(session, "oauth state")

	c.Redirect(http.StatusTemporaryRedirect, h.oauth.AuthCodeURL(state))
}

// GoogleCallback 处理 Google OAuth 回调
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauth == nil {
		RenderError(c, http.StatusNotFound, "Google login is not configured")
		return
	}
	session := sessions.Default(c)
	saved, _ := session.Get(oauthStateKey).(string)
	// state 只能用一次。成功时由 loginSession 统一保存，避免重复下发 cookie
	session.Delete(oauthStateKey)

	loginError := func(code int, msg string) {
		h.saveSession(session, "oauth state")
		Render(c, code, "auth/login.html", gin.H{"Title": "Login", "Error": msg, "GoogleEnabled": true})
	}

	if saved == "" || c.Query("state") != saved {
		loginError(http.StatusBadRequest, "Invalid login state, please try again")
		return
	}
	code := c.Query("code")
	if code == "" {
		loginError(http.StatusBadRequest, "Missing authorization code")
		return
	}

	ctx := c.Request.Context()
	if h.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.client)
	}
	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("OAuth token exchange failed", zap.Error(err))
		loginError(http.StatusBadGateway, "Google sign-in failed")
		return
	}

	profile, err := h.fetchGoogleProfile(ctx, token)
	if err != nil {
		h.log.Warn("Fetch google userinfo failed", zap.Error(err))
		loginError(http.StatusBadGateway, "Google sign-in failed")
		return
	}

	user, err := h.users.LoginGoogle(c.Request.Context(), profile)
	if err != nil {
		code, _ := errorKind(err)
		if code == http.StatusBadRequest {
			loginError(code, err.Error())
			return
		}
		h.saveSession(session, "oauth state")
		renderFailure(c, h.log, err)
		return
	}

	h.loginSession(c, user)
	h.log.Info("User logged in", zap.String("user_id", user.ID), zap.String("method", "google"))
	c.Redirect(http.StatusFound, "/")
}

// fetchGoogleProfile 用 token 的 client 请求 userinfo
func (h *AuthHandler) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (*services.GoogleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	var profile services.GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
