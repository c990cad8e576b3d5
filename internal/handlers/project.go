package handlers

import (
	"io"
	"net/http"
	"time"

	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projects  *services.ProjectService
	comments  *services.CommentService
	reactions *services.ReactionService
	feed      *services.ProjectFeed
	log       *zap.Logger
}

func NewProjectHandler(projects *services.ProjectService, comments *services.CommentService, reactions *services.ReactionService, feed *services.ProjectFeed, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, comments: comments, reactions: reactions, feed: feed, log: log}
}

func listOptions(c *gin.Context) services.ProjectListOptions {
	return services.ProjectListOptions{
		Sort:          c.DefaultQuery("sort", "hot"),
		Page:          utils.StringToInt(c.Query("page")),
		PerPage:       utils.ClampLimit(c.Query("per_page"), 20, 100),
		AuthorID:      c.Query("author"),
		IncludeDrafts: c.Query("drafts") == "1",
	}
}

// Index 首页 - 项目列表
func (h *ProjectHandler) Index(c *gin.Context) {
	opts := listOptions(c)
	projects, err := h.projects.List(c.Request.Context(), middleware.CurrentActor(c), opts)
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	Render(c, http.StatusOK, "project/list.html", gin.H{
		"Title":    "Projects",
		"Projects": projects,
		"Sort":     opts.Sort,
		"Page":     page,
		"HasMore":  len(projects) == opts.PerPage,
	})
}

// Detail 项目详情页 /projects/:slug
func (h *ProjectHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.CurrentActor(c)

	project, err := h.projects.GetBySlug(ctx, actor, c.Param("slug"))
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}
	h.projects.RecordView(ctx, project.ID)

	comments, err := h.comments.ListProjectComments(ctx, actor, project.ID, 100)
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}
	reactions, err := h.reactions.Summary(ctx, actor, project.ID)
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}

	Render(c, http.StatusOK, "project/detail.html", gin.H{
		"Title":         project.Title,
		"Project":       project,
		"Description":   utils.RenderMarkdown(project.Description),
		"Comments":      comments,
		"Reactions":     reactions,
		"ReactionTypes": models.ReactionTypes,
		"Error":         c.Query("error"),
	})
}

// CommentForm 无 JS 时的评论表单提交
func (h *ProjectHandler) CommentForm(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.CurrentActor(c)
	slug := c.Param("slug")

	project, err := h.projects.GetBySlug(ctx, actor, slug)
	if err != nil {
		renderFailure(c, h.log, err)
		return
	}
	comment, err := h.comments.Create(ctx, actor, project.ID, c.PostForm("content"), c.PostForm("parent_id"))
	if err != nil {
		code, _ := errorKind(err)
		if code == http.StatusBadRequest {
			c.Redirect(http.StatusFound, "/projects/"+slug+"?error="+err.Error()+"#comments")
			return
		}
		renderFailure(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, "/projects/"+slug+"#comment-"+comment.ID)
}

// List GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), middleware.CurrentActor(c), listOptions(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.projects.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var in services.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := h.projects.Create(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Update PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var in services.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := h.projects.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), in)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Publish POST /api/projects/:id/publish  body: {"published": bool}
func (h *ProjectHandler) Publish(c *gin.Context) {
	var req struct {
		Published bool `json:"published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	p, err := h.projects.SetPublished(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Published)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Share POST /api/projects/:id/share
func (h *ProjectHandler) Share(c *gin.Context) {
	if err := h.projects.RecordShare(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events GET /api/projects/:id/events  Server-Sent Events，推送项目快照
func (h *ProjectHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	actor := middleware.CurrentActor(c)
	p, err := h.projects.Get(ctx, actor, c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	snapshots, cancel := h.feed.Subscribe(p.ID, actor)
	defer cancel()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap, ok := <-snapshots:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return !snap.Final()
		case <-keepalive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
