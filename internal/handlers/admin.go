package handlers

import (
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler 计数修复和角色管理，路由组已挂 AdminRequired，service 内部仍会校验
type AdminHandler struct {
	recount *services.RecountService
	users   *services.UserService
	log     *zap.Logger
}

func NewAdminHandler(recount *services.RecountService, users *services.UserService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{recount: recount, users: users, log: log}
}

// RecountProject POST /api/admin/recount/projects/:id
func (h *AdminHandler) RecountProject(c *gin.Context) {
	report, err := h.recount.RecountProject(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "clean": report.Clean()})
}

// RecountUser POST /api/admin/recount/users/:id
func (h *AdminHandler) RecountUser(c *gin.Context) {
	report, err := h.recount.RecountUser(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "clean": report.Clean()})
}

// RecountAll POST /api/admin/recount  只返回有偏差的文档
func (h *AdminHandler) RecountAll(c *gin.Context) {
	reports, err := h.recount.RecountAll(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		// 部分失败时仍返回已修复的部分
		code, kind := errorKind(err)
		h.log.Warn("Recount finished with errors", zap.Int("repaired", len(reports)), zap.Error(err))
		c.JSON(code, gin.H{"error": kind, "message": err.Error(), "repaired": reports})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": reports})
}

// GrantRole POST /api/admin/users/:id/role  body: {"role": "developer"}
func (h *AdminHandler) GrantRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "role is required")
		return
	}
	user, err := h.users.GrantRole(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
