package handlers

import (
	"errors"
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if actor := middleware.CurrentActor(c); actor != nil {
		obj["CurrentUser"] = actor
		obj["UnreadCount"] = c.GetInt(middleware.UnreadCountKey)
	}
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

// errorKind 将错误映射为 HTTP 状态码和错误类别
func errorKind(err error) (int, string) {
	var be *store.BackendError
	switch {
	case errors.Is(err, services.ErrAuthRequired):
		return http.StatusUnauthorized, "auth_required"
	case errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &be), errors.Is(err, store.ErrMalformed):
		// 存储中的文档损坏同样按后端故障返回，便于排查数据漂移
		return http.StatusBadGateway, "backend"
	}
	return http.StatusInternalServerError, "internal"
}

// respondError API 错误统一为 {"error": kind, "message": text}
func respondError(c *gin.Context, log *zap.Logger, err error) {
	code, kind := errorKind(err)
	if code >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": kind, "message": err.Error()})
}

// renderFailure 页面请求的错误页
func renderFailure(c *gin.Context, log *zap.Logger, err error) {
	code, kind := errorKind(err)
	if code >= http.StatusInternalServerError {
		log.Error("Page failed", zap.String("path", c.Request.URL.Path), zap.String("kind", kind), zap.Error(err))
		RenderError(c, code, "Something went wrong, please try again later.")
		return
	}
	if code == http.StatusNotFound {
		RenderError(c, code, "Not found")
		return
	}
	RenderError(c, code, err.Error())
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation", "message": message})
}
