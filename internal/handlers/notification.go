package handlers

import (
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	log           *zap.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.notifications.List(c.Request.Context(), middleware.CurrentActor(c), 50)
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}
	Render(c, http.StatusOK, "notification/list.html", gin.H{
		"Title":         "Notifications",
		"Notifications": items,
		"Active":        "notifications",
	})
}

// ListJSON GET /api/notifications
func (h *NotificationHandler) ListJSON(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.CurrentActor(c)
	items, err := h.notifications.List(ctx, actor, utils.ClampLimit(c.Query("limit"), 50, 200))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"unread":        h.notifications.UnreadCount(ctx, actor),
	})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	if err := h.notifications.MarkAllRead(c.Request.Context(), middleware.CurrentActor(c)); err != nil {
		renderFailure(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, "/notifications")
}

// ReadAllJSON POST /api/notifications/read-all
func (h *NotificationHandler) ReadAllJSON(c *gin.Context) {
	if err := h.notifications.MarkAllRead(c.Request.Context(), middleware.CurrentActor(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusOK)
}
