package handlers

import (
	"net/http"

	"portfolio/internal/middleware"
	"portfolio/internal/services"
	"portfolio/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const captchaSessionKey = "captcha_answer"

type ContactHandler struct {
	contact *services.ContactService
	captcha *services.CaptchaService
	log     *zap.Logger
}

func NewContactHandler(contact *services.ContactService, captcha *services.CaptchaService, log *zap.Logger) *ContactHandler {
	return &ContactHandler{contact: contact, captcha: captcha, log: log}
}

// Captcha GET /api/contact/captcha 生成新的算术题，答案存 session
func (h *ContactHandler) Captcha(c *gin.Context) {
	question, answer := h.captcha.GenerateMathProblem()
	session := sessions.Default(c)
	session.Set(captchaSessionKey, answer)
	if err := session.Save(); err != nil {
		h.log.Error("Save captcha failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"captcha": question})
}

// verifyCaptcha 验证后立即作废，每道题只能用一次
func (h *ContactHandler) verifyCaptcha(c *gin.Context, answer string) bool {
	session := sessions.Default(c)
	expected, ok := session.Get(captchaSessionKey).(int)
	if !ok {
		return false
	}
	session.Delete(captchaSessionKey)
	session.Save()
	return h.captcha.Verify(expected, answer)
}

// Submit POST /api/contact
func (h *ContactHandler) Submit(c *gin.Context) {
	var req struct {
		services.ContactInput
		Captcha string `json:"captcha" form:"captcha"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	actor := middleware.CurrentActor(c)
	human := actor != nil || h.verifyCaptcha(c, req.Captcha)

	msg, err := h.contact.Submit(c.Request.Context(), actor, req.ContactInput, human)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID})
}

// List GET /api/admin/contacts
func (h *ContactHandler) List(c *gin.Context) {
	items, err := h.contact.List(c.Request.Context(), middleware.CurrentActor(c), utils.ClampLimit(c.Query("limit"), 50, 500))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": items})
}

// MarkHandled POST /api/admin/contacts/:id/handled  body: {"handled": bool}
func (h *ContactHandler) MarkHandled(c *gin.Context) {
	req := struct {
		Handled *bool `json:"handled"`
	}{}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	handled := req.Handled == nil || *req.Handled
	if err := h.contact.MarkHandled(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), handled); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "handled": handled})
}
