package router

import (
	"time"

	"portfolio/internal/handlers"
	"portfolio/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Project      *handlers.ProjectHandler
	Comment      *handlers.CommentHandler
	Reaction     *handlers.ReactionHandler
	Notification *handlers.NotificationHandler
	Contact      *handlers.ContactHandler
	Location     *handlers.LocationHandler
	Admin        *handlers.AdminHandler
	User         *handlers.UserHandler
	SEO          *handlers.SEOHandler
}

// RegisterRoutes 身份中间件 (middleware.LoadUser) 需在调用前挂到 r 上
func RegisterRoutes(r *gin.Engine, h *Handlers, corsOrigins []string) {
	// 全局挂载，预检请求没有匹配路由也要能返回
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 页面路由 (Pages)
	r.GET("/", h.Project.Index)                 // 首页 - 项目列表
	r.GET("/projects/:slug", h.Project.Detail) // 项目详情页

	r.GET("/login", h.Auth.ShowLogin)                     // 登录页面
	r.POST("/login", h.Auth.Login)                        // 提交登录
	r.GET("/logout", h.Auth.Logout)                       // 退出登录
	r.GET("/auth/google", h.Auth.GoogleLogin)             // Google 登录
	r.GET("/auth/google/callback", h.Auth.GoogleCallback) // Google 回调

	r.GET("/robots.txt", h.SEO.RobotsTxt)
	r.GET("/sitemap.xml", h.SEO.SitemapXML)
	r.GET("/feed.xml", h.SEO.RSSFeed)

	// 受保护页面 (Protected Pages)
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/projects/:slug/comments", h.Project.CommentForm) // 无 JS 评论表单
		authorized.GET("/notifications", h.Notification.List)              // 通知列表
		authorized.POST("/notifications/read-all", h.Notification.ReadAll) // 全部已读
	}

	// JSON API
	api := r.Group("/api")
	{
		api.GET("/me", h.Auth.Me)
		api.GET("/users/:id", h.User.Profile)

		api.GET("/projects", h.Project.List)
		api.GET("/projects/:id", h.Project.Get)
		api.GET("/projects/:id/events", h.Project.Events) // SSE 快照
		api.POST("/projects/:id/share", h.Project.Share)
		api.GET("/projects/:id/comments", h.Comment.ListProject)
		api.GET("/projects/:id/reactions", h.Reaction.Summary)
		api.GET("/comments/:id/replies", h.Comment.ListReplies)

		api.GET("/contact/captcha", h.Contact.Captcha)
		api.POST("/contact", h.Contact.Submit)
		api.POST("/location", h.Location.Record)
	}

	member := api.Group("")
	member.Use(middleware.AuthRequired())
	{
		member.POST("/projects/:id/comments", h.Comment.Create)
		member.PATCH("/comments/:id", h.Comment.Update)
		member.DELETE("/comments/:id", h.Comment.Delete)
		member.POST("/comments/:id/restore", h.Comment.Restore)
		member.POST("/comments/:id/like", h.Comment.ToggleLike)

		member.PUT("/projects/:id/reactions/:type", h.Reaction.Add())
		member.DELETE("/projects/:id/reactions/:type", h.Reaction.Remove())
		member.POST("/projects/:id/reactions/:type", h.Reaction.Toggle())

		member.GET("/notifications", h.Notification.ListJSON)
		member.POST("/notifications/:id/read", h.Notification.Read)
		member.POST("/notifications/read-all", h.Notification.ReadAllJSON)
	}

	// 项目管理 (admin / developer)
	manage := api.Group("/projects")
	manage.Use(middleware.ProjectManagerRequired())
	{
		manage.POST("", h.Project.Create)
		manage.PATCH("/:id", h.Project.Update)
		manage.POST("/:id/publish", h.Project.Publish)
		manage.DELETE("/:id", h.Project.Delete)
	}

	// 管理后台 (Admin)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/recount", h.Admin.RecountAll)
		admin.POST("/recount/projects/:id", h.Admin.RecountProject)
		admin.POST("/recount/users/:id", h.Admin.RecountUser)
		admin.POST("/users/:id/role", h.Admin.GrantRole)
		admin.GET("/contacts", h.Contact.List)
		admin.POST("/contacts/:id/handled", h.Contact.MarkHandled)
		admin.GET("/locations", h.Location.List)
	}
}
