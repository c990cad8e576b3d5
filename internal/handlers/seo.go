package handlers

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// sitemapLimit sitemap 和 feed 最多列出的项目数
const (
	sitemapLimit = 500
	feedLimit    = 20
)

type SEOHandler struct {
	projects *services.ProjectService
	siteURL  string
	log      *zap.Logger
}

func NewSEOHandler(projects *services.ProjectService, siteURL string, log *zap.Logger) *SEOHandler {
	return &SEOHandler{projects: projects, siteURL: strings.TrimRight(siteURL, "/"), log: log}
}

// RobotsTxt 返回robots.txt内容
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /

# 登录和接口不需要收录
Disallow: /login
Disallow: /auth/
Disallow: /api/
Disallow: /notifications

Sitemap: %s/sitemap.xml
`, h.siteURL)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

// SitemapXML 动态生成sitemap.xml，只包含已发布项目
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), nil, services.ProjectListOptions{Sort: "new", PerPage: sitemapLimit})
	if err != nil {
		h.log.Error("Build sitemap failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	now := time.Now().Format("2006-01-02")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
`)
	fmt.Fprintf(&b, `  <url>
    <loc>%s/</loc>
    <lastmod>%s</lastmod>
    <changefreq>daily</changefreq>
    <priority>1.0</priority>
  </url>
`, h.siteURL, now)

	for _, p := range projects {
		// 新项目优先级更高
		priority, changefreq := 0.6, "monthly"
		if days := time.Since(p.UpdatedAt).Hours() / 24; days < 7 {
			priority, changefreq = 0.8, "daily"
		} else if days < 30 {
			priority, changefreq = 0.7, "weekly"
		}
		fmt.Fprintf(&b, `  <url>
    <loc>%s/projects/%s</loc>
    <lastmod>%s</lastmod>
    <changefreq>%s</changefreq>
    <priority>%.1f</priority>
  </url>
`, h.siteURL, escapeXML(p.Slug), p.UpdatedAt.Format("2006-01-02"), changefreq, priority)
	}
	b.WriteString(`</urlset>`)

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// RSSFeed 最新项目的 RSS 2.0 feed
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), nil, services.ProjectListOptions{Sort: "new", PerPage: feedLimit})
	if err != nil {
		h.log.Error("Build feed failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Projects</title>
    <link>` + h.siteURL + `</link>
    <description>Latest projects</description>
    <lastBuildDate>` + time.Now().Format(time.RFC1123Z) + `</lastBuildDate>
    <atom:link href="` + h.siteURL + `/feed.xml" rel="self" type="application/rss+xml"/>
`)
	for _, p := range projects {
		link := h.siteURL + "/projects/" + p.Slug
		summary := utils.PlainExcerpt(string(utils.RenderMarkdown(p.Description)), 300)
		b.WriteString(`    <item>
      <title>` + escapeXML(p.Title) + `</title>
      <link>` + escapeXML(link) + `</link>
      <description>` + escapeXML(summary) + `</description>
`)
		if p.Category != "" {
			b.WriteString(`      <category>` + escapeXML(p.Category) + `</category>
`)
		}
		b.WriteString(`      <pubDate>` + p.CreatedAt.Format(time.RFC1123Z) + `</pubDate>
      <guid isPermaLink="true">` + escapeXML(link) + `</guid>
    </item>
`)
	}
	b.WriteString(`  </channel>
</rss>`)

	c.Header("Content-Type", "application/rss+xml; charset=utf-8")
	c.String(http.StatusOK, b.String())
}

// escapeXML 转义XML特殊字符
func escapeXML(s string) string {
	return html.EscapeString(s)
}
