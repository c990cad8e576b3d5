package services

import (
	"context"
	"errors"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"

	"go.uber.org/zap"
)

// ReactionState 一次反应操作之后的状态
type ReactionState struct {
	ProjectID string              `json:"projectId"`
	Type      models.ReactionType `json:"type"`
	Reacted   bool                `json:"reacted"`
	Count     int64               `json:"count"`
	Total     int64               `json:"total"`
}

// ReactionSummary 项目的反应计数以及当前用户已选的类型
type ReactionSummary struct {
	ProjectID string                `json:"projectId"`
	Counts    models.ReactionCounts `json:"counts"`
	Total     int64                 `json:"total"`
	Mine      []models.ReactionType `json:"mine"`
}

// ReactionService 每个用户可以对同一项目同时持有多种反应，每种类型独立开关。
type ReactionService struct {
	store store.Store
	feed  Toucher
	log   *zap.Logger
	now   func() time.Time
}

func NewReactionService(st store.Store, feed Toucher, log *zap.Logger) *ReactionService {
	if feed == nil {
		feed = nopToucher{}
	}
	return &ReactionService{
		store: st,
		feed:  feed,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type reactionOp int

const (
	reactionAdd reactionOp = iota
	reactionRemove
	reactionToggle
)

func (s *ReactionService) Add(ctx context.Context, actor *identity.Actor, projectID string, t models.ReactionType) (*ReactionState, error) {
	return s.apply(ctx, actor, projectID, t, reactionAdd)
}

func (s *ReactionService) Remove(ctx context.Context, actor *identity.Actor, projectID string, t models.ReactionType) (*ReactionState, error) {
	return s.apply(ctx, actor, projectID, t, reactionRemove)
}

func (s *ReactionService) Toggle(ctx context.Context, actor *identity.Actor, projectID string, t models.ReactionType) (*ReactionState, error) {
	return s.apply(ctx, actor, projectID, t, reactionToggle)
}

func (s *ReactionService) apply(ctx context.Context, actor *identity.Actor, projectID string, t models.ReactionType, op reactionOp) (*ReactionState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !t.Valid() {
		return nil, invalid("unknown reaction type %q", t)
	}

	now := s.now()
	id := models.ReactionID(projectID, actor.UserID, t)
	var state *ReactionState
	changed := false
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false
		p, err := tx.GetProject(projectID)
		if err != nil {
			return err
		}
		if !projectVisible(p, actor) {
			return store.ErrNotFound
		}

		_, err = tx.GetReaction(id)
		exists := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		state = &ReactionState{
			ProjectID: projectID,
			Type:      t,
			Reacted:   exists,
			Count:     p.ReactionsCount.Get(t),
			Total:     p.TotalReactions,
		}

		add := op == reactionAdd || (op == reactionToggle && !exists)
		var delta int64
		switch {
		case add && !exists:
			if err := tx.CreateReaction(&models.Reaction{
				ID:        id,
				ProjectID: projectID,
				UserID:    actor.UserID,
				Type:      t,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			delta = 1
		case !add && exists:
			if err := tx.DeleteReaction(id); err != nil {
				return err
			}
			delta = -1
		default:
			return nil
		}

		if err := tx.IncrementProjectReaction(projectID, t, delta); err != nil {
			return err
		}
		if err := tx.IncrementProject(projectID, store.FieldTotalReactions, delta); err != nil {
			return err
		}
		if err := tx.BumpUser(actor.UserID, map[string]int64{store.FieldReactionsGiven: delta}, now); err != nil {
			return err
		}

		state.Reacted = delta > 0
		state.Count += delta
		state.Total += delta
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.Debug("Reaction updated",
			zap.String("project_id", projectID),
			zap.String("type", string(t)),
			zap.Bool("reacted", state.Reacted),
		)
		s.feed.Touch(projectID)
	}
	return state, nil
}

func (s *ReactionService) Summary(ctx context.Context, actor *identity.Actor, projectID string) (*ReactionSummary, error) {
	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !projectVisible(p, actor) {
		return nil, store.ErrNotFound
	}

	summary := &ReactionSummary{
		ProjectID: projectID,
		Counts:    p.ReactionsCount,
		Total:     p.TotalReactions,
		Mine:      []models.ReactionType{},
	}
	if actor == nil {
		return summary, nil
	}

	mine, err := s.store.ListReactions(ctx, store.ReactionQuery{ProjectID: projectID, UserID: actor.UserID})
	if err != nil {
		return nil, err
	}
	for _, r := range mine {
		summary.Mine = append(summary.Mine, r.Type)
	}
	return summary, nil
}
