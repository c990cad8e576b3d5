package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"portfolio/internal/backend"
	"portfolio/internal/config"
	"portfolio/internal/handlers"
	"portfolio/internal/logging"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/router"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, found := config.Load()

	log, err := logging.New(cfg.IsRelease())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if !found {
		log.Info("No .env file found, using environment variables")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("Server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Migrate(); err != nil {
		return err
	}
	verifier, err := b.Verifier(ctx)
	if err != nil {
		return err
	}

	// Services
	st := b.Store
	authors, err := services.NewAuthorDirectory(st, 1000, 5*time.Minute, log)
	if err != nil {
		return err
	}
	feed := services.NewProjectFeed(st, authors, b.Source, cfg.FeedFlushInterval, log)
	mail := services.NewMailService(cfg, log)
	notifications := services.NewNotificationService(st, mail, cfg.SiteURL, log)
	comments := services.NewCommentService(st, authors, feed, notifications, log)
	reactions := services.NewReactionService(st, feed, log)
	projects := services.NewProjectService(st, feed, log)
	recount := services.NewRecountService(st, feed, log)
	contact := services.NewContactService(st, mail, cfg.OwnerEmail, log)
	locations := services.NewLocationService(st, log)
	users, err := services.NewUserService(st, authors, log)
	if err != nil {
		return err
	}

	if cfg.OwnerEmail != "" && cfg.OwnerPassword != "" {
		if err := users.SeedOwner(ctx, cfg.OwnerEmail, cfg.OwnerName, cfg.OwnerPassword); err != nil {
			log.Error("Seed owner failed", zap.Error(err))
		}
	}

	feed.Start(ctx)

	// Initialize Gin
	gin.SetMode(cfg.GinMode)
	r := gin.Default()

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsRelease(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("portfolio_session", sessionStore))
	// SSE 不能被压缩缓冲
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/api/projects/[^/]+/events$`})))

	r.HTMLRender = loadTemplates("./web/templates")
	r.Static("/static", "./web/static")

	r.Use(middleware.LoadUser(users, notifications, verifier, log))

	router.RegisterRoutes(r, &router.Handlers{
		Auth:         handlers.NewAuthHandler(users, handlers.GoogleOAuthConfig(cfg), log),
		Project:      handlers.NewProjectHandler(projects, comments, reactions, feed, log),
		Comment:      handlers.NewCommentHandler(comments, log),
		Reaction:     handlers.NewReactionHandler(reactions, log),
		Notification: handlers.NewNotificationHandler(notifications, log),
		Contact:      handlers.NewContactHandler(contact, services.NewCaptchaService(), log),
		Location:     handlers.NewLocationHandler(locations, log),
		Admin:        handlers.NewAdminHandler(recount, users, log),
		User:         handlers.NewUserHandler(users, log),
		SEO:          handlers.NewSEOHandler(projects, cfg.SiteURL, log),
	}, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Portfolio server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(components)+1)
		files = append(files, layouts...)
		files = append(files, components...)
		files = append(files, templatesDir+"/views/"+view)
		return files
	}

	funcMap := template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"timeAgo": timeAgo,
		"avatar":  utils.DefaultAvatar,
		"excerpt": func(markdown string, n int) string {
			return utils.PlainExcerpt(string(utils.RenderMarkdown(markdown)), n)
		},
		"reactionCount": func(counts models.ReactionCounts, t models.ReactionType) int64 {
			return counts.Get(t)
		},
		"hasReacted": func(mine []models.ReactionType, t models.ReactionType) bool {
			for _, m := range mine {
				if m == t {
					return true
				}
			}
			return false
		},
	}

	for _, view := range []string{
		"project/list.html",
		"project/detail.html",
		"auth/login.html",
		"notification/list.html",
		"error.html",
	} {
		r.AddFromFilesFuncs(view, funcMap, assemble(view)...)
	}
	return r
}

func timeAgo(t time.Time) string {
	seconds := int(time.Since(t).Seconds())
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	case seconds < 2592000:
		return fmt.Sprintf("%dd ago", seconds/86400)
	case seconds < 31536000:
		return fmt.Sprintf("%dmo ago", seconds/2592000)
	}
	return fmt.Sprintf("%dy ago", seconds/31536000)
}
