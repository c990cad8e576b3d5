package handlers

import (
	"net/http"
	"time"

	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	users *services.UserService
	log   *zap.Logger
}

func NewUserHandler(users *services.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// publicProfile 不含邮箱和登录信息
type publicProfile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Avatar         string    `json:"avatar"`
	Role           string    `json:"role"`
	CommentsCount  int64     `json:"commentsCount"`
	ReactionsGiven int64     `json:"reactionsGiven"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Profile GET /api/users/:id
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, publicProfile{
		ID:             user.ID,
		Name:           utils.DisplayName(user.Name),
		Avatar:         user.Avatar,
		Role:           user.Role,
		CommentsCount:  user.CommentsCount,
		ReactionsGiven: user.ReactionsGiven,
		CreatedAt:      user.CreatedAt,
	})
}
