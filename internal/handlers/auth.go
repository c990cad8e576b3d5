package handlers

import (
	"errors"
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type AuthHandler struct {
	users  *services.UserService
	oauth  *oauth2.Config
	client *http.Client // 测试时替换 token 交换和 userinfo 请求
	// userinfo 地址，测试时指向本地服务
	userInfoURL string
	log         *zap.Logger
}

// NewAuthHandler oauth 为 nil 时关闭 Google 登录
func NewAuthHandler(users *services.UserService, oauth *oauth2.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, oauth: oauth, userInfoURL: googleUserInfo, log: log}
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	if middleware.CurrentActor(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	Render(c, http.StatusOK, "auth/login.html", gin.H{"Title": "Login", "GoogleEnabled": h.oauth != nil})
}

func (h *AuthHandler) loginSession(c *gin.Context, user *models.User) {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		h.log.Error("Save session failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (h *AuthHandler) saveSession(session sessions.Session, what string) {
	if err := session.Save(); err != nil {
		h.log.Error("Save session failed", zap.String("session", what), zap.Error(err))
	}
}

// Login 本地账号（站长）登录
func (h *AuthHandler) Login(c *gin.Context) {
	user, err := h.users.LoginLocal(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, services.ErrAuthRequired) {
			Render(c, http.StatusUnauthorized, "auth/login.html", gin.H{
				"Title":         "Login",
				"Error":         "Invalid email or password",
				"GoogleEnabled": h.oauth != nil,
			})
			return
		}
		renderFailure(c, h.log, err)
		return
	}

	h.loginSession(c, user)
	h.log.Info("User logged in", zap.String("user_id", user.ID), zap.String("method", "password"))
	c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	h.saveSession(session, "logout")
	c.Redirect(http.StatusFound, "/")
}

// Me GET /api/me 当前身份，未登录返回 {"user": null}
func (h *AuthHandler) Me(c *gin.Context) {
	actor := middleware.CurrentActor(c)
	if actor == nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}
	user, err := h.users.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		// Bearer 用户的 profile 尚未写入时只返回 token 中的信息
		c.JSON(http.StatusOK, gin.H{"user": actor})
		return
	}
	user.Role = actor.Role
	c.JSON(http.StatusOK, gin.H{"user": user})
}
