package models

import (
	"time"
)

type ReactionType string

const (
	ReactionLike   ReactionType = "like"
	ReactionLove   ReactionType = "love"
	ReactionFire   ReactionType = "fire"
	ReactionWow    ReactionType = "wow"
	ReactionLaugh  ReactionType = "laugh"
	ReactionIdea   ReactionType = "idea"
	ReactionRocket ReactionType = "rocket"
	ReactionClap   ReactionType = "clap"
)

// ReactionTypes 固定的反应类型，顺序即前端调色板顺序
var ReactionTypes = []ReactionType{
	ReactionLike, ReactionLove, ReactionFire, ReactionWow,
	ReactionLaugh, ReactionIdea, ReactionRocket, ReactionClap,
}

func (t ReactionType) Valid() bool {
	for _, rt := range ReactionTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Column 对应 projects 表中的计数列名
func (t ReactionType) Column() string {
	return "reactions_" + string(t)
}

// ReactionCounts 每种反应的计数。SQL 中展开为 reactions_xxx 列，Firestore 中为 reactionsCount 嵌套 map
type ReactionCounts struct {
	Like   int64 `gorm:"default:0" json:"like" firestore:"like"`
	Love   int64 `gorm:"default:0" json:"love" firestore:"love"`
	Fire   int64 `gorm:"default:0" json:"fire" firestore:"fire"`
	Wow    int64 `gorm:"default:0" json:"wow" firestore:"wow"`
	Laugh  int64 `gorm:"default:0" json:"laugh" firestore:"laugh"`
	Idea   int64 `gorm:"default:0" json:"idea" firestore:"idea"`
	Rocket int64 `gorm:"default:0" json:"rocket" firestore:"rocket"`
	Clap   int64 `gorm:"default:0" json:"clap" firestore:"clap"`
}

func (r *ReactionCounts) field(t ReactionType) *int64 {
	switch t {
	case ReactionLike:
		return &r.Like
	case ReactionLove:
		return &r.Love
	case ReactionFire:
		return &r.Fire
	case ReactionWow:
		return &r.Wow
	case ReactionLaugh:
		return &r.Laugh
	case ReactionIdea:
		return &r.Idea
	case ReactionRocket:
		return &r.Rocket
	case ReactionClap:
		return &r.Clap
	}
	return nil
}

func (r ReactionCounts) Get(t ReactionType) int64 {
	if f := r.field(t); f != nil {
		return *f
	}
	return 0
}

func (r *ReactionCounts) Set(t ReactionType, v int64) {
	if f := r.field(t); f != nil {
		*f = v
	}
}

func (r ReactionCounts) Total() int64 {
	var total int64
	for _, t := range ReactionTypes {
		total += r.Get(t)
	}
	return total
}

type Project struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	Title          string         `gorm:"not null" json:"title" firestore:"title"`
	Slug           string         `gorm:"uniqueIndex;size:120;not null" json:"slug" firestore:"slug"`
	Description    string         `gorm:"type:text" json:"description" firestore:"description"`
	Images         []string       `gorm:"type:text;serializer:json" json:"images" firestore:"images"`
	TechTags       []string       `gorm:"type:text;serializer:json" json:"techTags" firestore:"techTags"`
	Category       string         `gorm:"size:50;index" json:"category" firestore:"category"`
	LiveURL        string         `json:"liveUrl" firestore:"liveUrl"`
	RepoURL        string         `json:"repoUrl" firestore:"repoUrl"`
	Published      bool           `gorm:"default:false;index" json:"published" firestore:"published"`
	AuthorID       string         `gorm:"size:128;not null;index" json:"authorId" firestore:"authorId"`
	CommentsCount  int64          `gorm:"default:0" json:"commentsCount" firestore:"commentsCount"`
	ReactionsCount ReactionCounts `gorm:"embedded;embeddedPrefix:reactions_" json:"reactionsCount" firestore:"reactionsCount"`
	TotalReactions int64          `gorm:"default:0" json:"totalReactions" firestore:"totalReactions"`
	ViewsCount     int64          `gorm:"default:0" json:"viewsCount" firestore:"viewsCount"`
	SharesCount    int64          `gorm:"default:0" json:"sharesCount" firestore:"sharesCount"`
	Score          float64        `gorm:"default:0;index" json:"score" firestore:"score"` // 热度，由 ProjectFeed 异步刷新
	CreatedAt      time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" firestore:"updatedAt"`
}
