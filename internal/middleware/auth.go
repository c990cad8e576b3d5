package middleware

import (
	"net/http"
	"strings"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CheckUserKey   = "actor"
	UnreadCountKey = "unread_count"
	// SessionUserKey session 中保存的用户 ID
	SessionUserKey = "user_id"
)

// CurrentActor 未登录时返回 nil
func CurrentActor(c *gin.Context) *identity.Actor {
	if v, ok := c.Get(CheckUserKey); ok {
		if a, ok := v.(*identity.Actor); ok {
			return a
		}
	}
	return nil
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

func abortJSON(c *gin.Context, code int, kind, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": kind, "message": message})
}

// LoadUser 解析当前请求的身份：优先 Authorization: Bearer <Firebase ID token>，其次 cookie session。
// verifier 为 nil 时不接受 Bearer token。
func LoadUser(users *services.UserService, notifications *services.NotificationService, verifier identity.TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && verifier != nil {
			actor, err := verifier.Verify(ctx, strings.TrimSpace(token))
			if err != nil {
				log.Debug("Rejected bearer token", zap.Error(err))
				abortJSON(c, http.StatusUnauthorized, "auth_required", "invalid or expired token")
				return
			}
			users.EnsureProfile(ctx, actor)
			// 后台授予的角色优先于 token claim
			if stored, err := users.Actor(ctx, actor.UserID); err == nil && stored != nil && stored.Role != models.RoleUser {
				actor.Role = stored.Role
			}
			c.Set(CheckUserKey, actor)
			c.Next()
			return
		}

		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserKey).(string); ok && userID != "" {
			actor, err := users.Actor(ctx, userID)
			switch {
			case err != nil:
				log.Warn("Load session user failed", zap.String("user_id", userID), zap.Error(err))
			case actor == nil:
				session.Delete(SessionUserKey)
				_ = session.Save()
			default:
				c.Set(CheckUserKey, actor)
				if notifications != nil && !wantsJSON(c) {
					c.Set(UnreadCountKey, notifications.UnreadCount(ctx, actor))
				}
			}
		}
		c.Next()
	}
}

// AuthRequired API 请求返回 401 JSON，页面请求跳转登录页
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentActor(c) != nil {
			c.Next()
			return
		}
		if wantsJSON(c) {
			abortJSON(c, http.StatusUnauthorized, "auth_required", services.ErrAuthRequired.Error())
			return
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
	}
}

func requireRole(allowed func(*identity.Actor) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if actor == nil {
			abortJSON(c, http.StatusUnauthorized, "auth_required", services.ErrAuthRequired.Error())
			return
		}
		if !allowed(actor) {
			abortJSON(c, http.StatusForbidden, "permission_denied", services.ErrPermissionDenied.Error())
			return
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return requireRole((*identity.Actor).IsAdmin)
}

// ProjectManagerRequired 管理员或开发者
func ProjectManagerRequired() gin.HandlerFunc {
	return requireRole((*identity.Actor).CanManageProjects)
}
