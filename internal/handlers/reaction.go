package handlers

import (
	"context"
	"net/http"

	"portfolio/internal/identity"
	"portfolio/internal/middleware"
	"portfolio/internal/models"
	"portfolio/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReactionHandler struct {
	reactions *services.ReactionService
	log       *zap.Logger
}

func NewReactionHandler(reactions *services.ReactionService, log *zap.Logger) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, log: log}
}

// Summary GET /api/projects/:id/reactions
func (h *ReactionHandler) Summary(c *gin.Context) {
	summary, err := h.reactions.Summary(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type reactionFunc func(ctx context.Context, actor *identity.Actor, projectID string, t models.ReactionType) (*services.ReactionState, error)

func (h *ReactionHandler) apply(fn reactionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := fn(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), models.ReactionType(c.Param("type")))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// Add PUT /api/projects/:id/reactions/:type
func (h *ReactionHandler) Add() gin.HandlerFunc { return h.apply(h.reactions.Add) }

// Remove DELETE /api/projects/:id/reactions/:type
func (h *ReactionHandler) Remove() gin.HandlerFunc { return h.apply(h.reactions.Remove) }

// Toggle POST /api/projects/:id/reactions/:type
func (h *ReactionHandler) Toggle() gin.HandlerFunc { return h.apply(h.reactions.Toggle) }
