package store

import (
	"fmt"

	"portfolio/internal/models"
)

// 读取边界的解码校验：文档缺少必需字段时判为 ErrMalformed，由调用方决定跳过还是报错。
// 计数字段的缺省值 0 由解码本身提供，业务代码不再做 `x || 0` 式的兜底。

func ValidateComment(c *models.Comment) error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: comment without id", ErrMalformed)
	case c.ProjectID == "":
		return fmt.Errorf("%w: comment %s has no projectId", ErrMalformed, c.ID)
	case c.UserID == "":
		return fmt.Errorf("%w: comment %s has no userId", ErrMalformed, c.ID)
	case c.CreatedAt.IsZero():
		return fmt.Errorf("%w: comment %s has no createdAt", ErrMalformed, c.ID)
	case c.Likes < 0 || c.RepliesCount < 0:
		return fmt.Errorf("%w: comment %s has negative counters", ErrMalformed, c.ID)
	}
	if c.ParentCommentID != nil && *c.ParentCommentID == "" {
		c.ParentCommentID = nil
	}
	if c.UserLikes == nil {
		c.UserLikes = []string{}
	}
	return nil
}

func ValidateProject(p *models.Project) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: project without id", ErrMalformed)
	case p.Title == "":
		return fmt.Errorf("%w: project %s has no title", ErrMalformed, p.ID)
	case p.AuthorID == "":
		return fmt.Errorf("%w: project %s has no authorId", ErrMalformed, p.ID)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.TechTags == nil {
		p.TechTags = []string{}
	}
	return nil
}

func ValidateReaction(r *models.Reaction) error {
	if r.ProjectID == "" || r.UserID == "" || !r.Type.Valid() {
		return fmt.Errorf("%w: reaction %s", ErrMalformed, r.ID)
	}
	return nil
}

func ValidateUser(u *models.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: user without id", ErrMalformed)
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	return nil
}
