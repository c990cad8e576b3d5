package services

import (
	"context"
	"fmt"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"

	"go.uber.org/zap"
)

// Drift 单个计数字段在重算前后的值
type Drift struct {
	Field  string `json:"field"`
	Before int64  `json:"before"`
	After  int64  `json:"after"`
}

// DriftReport 重算结果，Drifts 只包含有偏差的字段
type DriftReport struct {
	Kind   string  `json:"kind"` // project 或 user
	ID     string  `json:"id"`
	Drifts []Drift `json:"drifts"`
}

func (r *DriftReport) Clean() bool {
	return len(r.Drifts) == 0
}

func (r *DriftReport) check(field string, before, after int64) {
	if before != after {
		r.Drifts = append(r.Drifts, Drift{Field: field, Before: before, After: after})
	}
}

// RecountService 从存活文档重新计算冗余计数，用于修复历史数据中的偏差
type RecountService struct {
	store store.Store
	feed  Toucher
	log   *zap.Logger
	now   func() time.Time
}

func NewRecountService(st store.Store, feed Toucher, log *zap.Logger) *RecountService {
	if feed == nil {
		feed = nopToucher{}
	}
	return &RecountService{
		store: st,
		feed:  feed,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SystemActor 命令行工具使用的管理员身份
var SystemActor = &identity.Actor{UserID: "system", Name: "system", Role: models.RoleAdmin}

func (s *RecountService) RecountProject(ctx context.Context, actor *identity.Actor, projectID string) (*DriftReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var report *DriftReport
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		report = &DriftReport{Kind: "project", ID: projectID}

		p, err := tx.GetProject(projectID)
		if err != nil {
			return err
		}
		comments, err := tx.ListComments(store.CommentQuery{ProjectID: projectID, IncludeDeleted: true, Ascending: true})
		if err != nil {
			return err
		}
		reactions, err := tx.ListReactions(store.ReactionQuery{ProjectID: projectID})
		if err != nil {
			return err
		}

		var live int64
		replies := map[string]int64{}
		for _, c := range comments {
			if c.Deleted {
				continue
			}
			live++
			if c.IsReply() {
				replies[*c.ParentCommentID]++
			}
		}
		var counts models.ReactionCounts
		for _, r := range reactions {
			counts.Set(r.Type, counts.Get(r.Type)+1)
		}

		fields := store.Fields{}
		report.check(store.FieldCommentsCount, p.CommentsCount, live)
		fields[store.FieldCommentsCount] = live
		for _, t := range models.ReactionTypes {
			field := "reactionsCount." + string(t)
			report.check(field, p.ReactionsCount.Get(t), counts.Get(t))
			fields[field] = counts.Get(t)
		}
		report.check(store.FieldTotalReactions, p.TotalReactions, counts.Total())
		fields[store.FieldTotalReactions] = counts.Total()

		var commentFixes []func() error
		for i := range comments {
			c := &comments[i]
			if c.IsReply() {
				continue
			}
			want := replies[c.ID]
			if c.RepliesCount == want {
				continue
			}
			report.check(fmt.Sprintf("comments/%s.%s", c.ID, store.FieldRepliesCount), c.RepliesCount, want)
			id := c.ID
			commentFixes = append(commentFixes, func() error {
				return tx.UpdateComment(id, store.Fields{store.FieldRepliesCount: want})
			})
		}

		if report.Clean() {
			return nil
		}
		if err := tx.UpdateProject(projectID, fields); err != nil {
			return err
		}
		for _, fix := range commentFixes {
			if err := fix(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Clean() {
		s.log.Warn("Project counters drifted",
			zap.String("project_id", projectID),
			zap.Any("drifts", report.Drifts),
		)
		s.feed.Touch(projectID)
	}
	return report, nil
}

func (s *RecountService) RecountUser(ctx context.Context, actor *identity.Actor, userID string) (*DriftReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	var report *DriftReport
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		report = &DriftReport{Kind: "user", ID: userID}

		u, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		comments, err := tx.ListComments(store.CommentQuery{UserID: userID})
		if err != nil {
			return err
		}
		reactions, err := tx.ListReactions(store.ReactionQuery{UserID: userID})
		if err != nil {
			return err
		}

		live := int64(len(comments))
		given := int64(len(reactions))
		report.check(store.FieldCommentsCount, u.CommentsCount, live)
		report.check(store.FieldReactionsGiven, u.ReactionsGiven, given)
		if report.Clean() {
			return nil
		}
		return tx.UpdateUser(userID, store.Fields{
			store.FieldCommentsCount:  live,
			store.FieldReactionsGiven: given,
		})
	})
	if err != nil {
		return nil, err
	}

	if !report.Clean() {
		s.log.Warn("User counters drifted",
			zap.String("user_id", userID),
			zap.Any("drifts", report.Drifts),
		)
	}
	return report, nil
}

// RecountAll 逐个重算所有项目和用户，返回有偏差的报告。单个文档失败会记录日志并继续。
func (s *RecountService) RecountAll(ctx context.Context, actor *identity.Actor) ([]DriftReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	projects, err := s.store.ListProjects(ctx, store.ProjectQuery{})
	if err != nil {
		return nil, err
	}
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drifted []DriftReport
	failed := 0
	for _, p := range projects {
		r, err := s.RecountProject(ctx, actor, p.ID)
		if err != nil {
			failed++
			s.log.Error("Recount project failed", zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		if !r.Clean() {
			drifted = append(drifted, *r)
		}
	}
	for _, id := range userIDs {
		r, err := s.RecountUser(ctx, actor, id)
		if err != nil {
			failed++
			s.log.Error("Recount user failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		if !r.Clean() {
			drifted = append(drifted, *r)
		}
	}

	s.log.Info("Recount finished",
		zap.Int("projects", len(projects)),
		zap.Int("users", len(userIDs)),
		zap.Int("drifted", len(drifted)),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return drifted, fmt.Errorf("recount: %d documents failed", failed)
	}
	return drifted, nil
}
