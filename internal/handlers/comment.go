package handlers

import (
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CommentHandler struct {
	comments *services.CommentService
	log      *zap.Logger
}

func NewCommentHandler(comments *services.CommentService, log *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

type createCommentRequest struct {
	Content         string `json:"content"`
	ParentCommentID string `json:"parentCommentId"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type likeRequest struct {
	IsLiked bool `json:"isLiked"`
}

// ListProject GET /api/projects/:id/comments
func (h *CommentHandler) ListProject(c *gin.Context) {
	limit := utils.ClampLimit(c.Query("limit"), 50, 200)
	views, err := h.comments.ListProjectComments(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": views})
}

// ListReplies GET /api/comments/:id/replies?includeDeleted=1
func (h *CommentHandler) ListReplies(c *gin.Context) {
	includeDeleted := c.Query("includeDeleted") == "1" || c.Query("includeDeleted") == "true"
	views, err := h.comments.ListReplies(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), includeDeleted)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": views})
}

// Create POST /api/projects/:id/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Content, req.ParentCommentID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Update PATCH /api/comments/:id
func (h *CommentHandler) Update(c *gin.Context) {
	var req updateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	comment, err := h.comments.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Delete DELETE /api/comments/:id?hard=1
func (h *CommentHandler) Delete(c *gin.Context) {
	hard := c.Query("hard") == "1" || c.Query("hard") == "true"
	res, err := h.comments.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), hard)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Restore POST /api/comments/:id/restore
func (h *CommentHandler) Restore(c *gin.Context) {
	res, err := h.comments.Restore(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ToggleLike POST /api/comments/:id/like  body: {"isLiked": <客户端看到的状态>}
func (h *CommentHandler) ToggleLike(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	state, err := h.comments.ToggleLike(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.IsLiked)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
