package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"
	"portfolio/internal/utils"

	"go.uber.org/zap"
)

const (
	feedQueueSize     = 1000
	feedCommentsLimit = 50
)

// Snapshot 推送给订阅者的项目状态
type Snapshot struct {
	ProjectID string          `json:"projectId"`
	Project   *models.Project `json:"project,omitempty"`
	Comments  []CommentView   `json:"comments"`
	Deleted   bool            `json:"deleted"`
	// Hidden 项目已不对该订阅者可见（例如被取消发布），这是最后一条快照
	Hidden    bool            `json:"hidden,omitempty"`
	At        time.Time       `json:"at"`
}

// Final 订阅者收到后应停止读取
func (s Snapshot) Final() bool {
	return s.Deleted || s.Hidden
}

type subscriber struct {
	ch    chan Snapshot
	actor *identity.Actor
	once  sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// send 缓冲为 1，订阅者来不及读时用最新的快照替换旧的
func (s *subscriber) send(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

// ProjectFeed 收集"项目有变化"的信号，去重后按固定间隔批量处理：
// 重新计算热度分数，并把最新快照推送给该项目的订阅者。一次突发的多次变更只产生一次快照。
type ProjectFeed struct {
	store    store.Store
	authors  *AuthorDirectory
	source   store.ChangeSource // 可为 nil
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	order   []string
	pending map[string]bool
	subs    map[string]map[*subscriber]struct{}
	watches map[string]context.CancelFunc
	ctx     context.Context // Start 之后非 nil
}

func NewProjectFeed(st store.Store, authors *AuthorDirectory, source store.ChangeSource, interval time.Duration, log *zap.Logger) *ProjectFeed {
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	return &ProjectFeed{
		store:    st,
		authors:  authors,
		source:   source,
		interval: interval,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		pending:  map[string]bool{},
		subs:     map[string]map[*subscriber]struct{}{},
		watches:  map[string]context.CancelFunc{},
	}
}

// Touch 将项目加入待处理队列（异步、去重）
func (f *ProjectFeed) Touch(projectID string) {
	if projectID == "" {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending[projectID] {
		return
	}
	if len(f.order) >= feedQueueSize {
		f.log.Warn("Feed queue full, dropping touch", zap.String("project_id", projectID))
		return
	}
	f.pending[projectID] = true
	f.order = append(f.order, projectID)
}

// Start 启动批处理 worker 和每日热度刷新，ctx 结束时关闭所有订阅
func (f *ProjectFeed) Start(ctx context.Context) {
	f.mu.Lock()
	f.ctx = ctx
	for id := range f.subs {
		f.startWatchLocked(id)
	}
	f.mu.Unlock()

	go f.worker(ctx)
	go f.scheduledRefresh(ctx)
}

func (f *ProjectFeed) worker(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.shutdown()
			return
		case <-ticker.C:
			f.flush(ctx)
		}
	}
}

// flush 取出当前批次；先清空 pending，处理期间的新变更会进入下一批
func (f *ProjectFeed) flush(ctx context.Context) int {
	f.mu.Lock()
	batch := f.order
	f.order = nil
	f.pending = map[string]bool{}
	f.mu.Unlock()

	for _, id := range batch {
		f.process(ctx, id)
	}
	return len(batch)
}

func (f *ProjectFeed) process(ctx context.Context, projectID string) {
	now := f.now()
	p, err := f.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		f.publish(projectID, nil, Snapshot{ProjectID: projectID, Deleted: true, Comments: []CommentView{}, At: now})
		return
	}
	if err != nil {
		f.log.Error("Feed load project failed", zap.String("project_id", projectID), zap.Error(err))
		return
	}

	score := utils.CalculateScore(utils.ProjectActivity{
		CreatedAt: p.CreatedAt,
		Reactions: p.TotalReactions,
		Comments:  p.CommentsCount,
		Shares:    p.SharesCount,
		Views:     p.ViewsCount,
	}, now)
	if math.Abs(score-p.Score) > 1e-9 {
		if err := f.store.UpdateProject(ctx, projectID, store.Fields{"score": score}); err != nil {
			f.log.Warn("Update score failed", zap.String("project_id", projectID), zap.String("side_effect", "score"), zap.Error(err))
		} else {
			p.Score = score
		}
	}

	if !f.hasSubscribers(projectID) {
		return
	}
	comments, err := f.store.ListComments(ctx, store.CommentQuery{
		ProjectID:    projectID,
		TopLevelOnly: true,
		Limit:        feedCommentsLimit,
	})
	if err != nil {
		f.log.Error("Feed load comments failed", zap.String("project_id", projectID), zap.Error(err))
		return
	}
	f.publish(projectID, p, Snapshot{
		ProjectID: projectID,
		Project:   p,
		Comments:  buildViews(ctx, f.authors, comments, nil),
		At:        now,
	})
}

func (f *ProjectFeed) hasSubscribers(projectID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[projectID]) > 0
}

// publish p 为 nil 表示项目已删除。草稿只推送给作者和管理员，其他订阅者收到 Hidden 快照后被移除
func (f *ProjectFeed) publish(projectID string, p *models.Project, snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[projectID] {
		if p != nil && !projectVisible(p, sub.actor) {
			sub.send(Snapshot{ProjectID: projectID, Hidden: true, Comments: []CommentView{}, At: snap.At})
			f.removeLocked(projectID, sub)
			continue
		}
		sub.send(snap)
	}
}

// removeLocked 移除订阅者，最后一个订阅者离开时停止监听。调用方持有 mu
func (f *ProjectFeed) removeLocked(projectID string, sub *subscriber) {
	if _, ok := f.subs[projectID][sub]; !ok {
		return
	}
	delete(f.subs[projectID], sub)
	sub.close()
	if len(f.subs[projectID]) == 0 {
		delete(f.subs, projectID)
		if stop, ok := f.watches[projectID]; ok {
			stop()
			delete(f.watches, projectID)
		}
	}
}

// Subscribe 订阅项目快照，actor 可为 nil（匿名）。返回的 cancel 必须调用；订阅后会立即排队一次快照。
func (f *ProjectFeed) Subscribe(projectID string, actor *identity.Actor) (<-chan Snapshot, func()) {
	sub := &subscriber{ch: make(chan Snapshot, 1), actor: actor}

	f.mu.Lock()
	if f.subs[projectID] == nil {
		f.subs[projectID] = map[*subscriber]struct{}{}
	}
	f.subs[projectID][sub] = struct{}{}
	if len(f.subs[projectID]) == 1 {
		f.startWatchLocked(projectID)
	}
	f.mu.Unlock()

	f.Touch(projectID)

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.removeLocked(projectID, sub)
	}
	return sub.ch, cancel
}

// startWatchLocked 后端支持原生推送时为项目启动监听，调用方持有 mu
func (f *ProjectFeed) startWatchLocked(projectID string) {
	if f.source == nil || f.ctx == nil {
		return
	}
	if _, ok := f.watches[projectID]; ok {
		return
	}
	ctx, cancel := context.WithCancel(f.ctx)
	f.watches[projectID] = cancel
	go func() {
		err := f.source.WatchProjectComments(ctx, projectID, func() { f.Touch(projectID) })
		if err != nil {
			f.log.Warn("Project watch stopped", zap.String("project_id", projectID), zap.Error(err))
		}
	}()
}

func (f *ProjectFeed) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, subs := range f.subs {
		for sub := range subs {
			sub.close()
		}
		delete(f.subs, id)
	}
	for id, stop := range f.watches {
		stop()
		delete(f.watches, id)
	}
}

// scheduledRefresh 每天凌晨 3 点刷新所有已发布项目的热度，让没有互动的项目也随时间衰减
func (f *ProjectFeed) scheduledRefresh(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
		if now.After(next) {
			next = next.Add(24 * time.Hour)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		n, err := f.RefreshAll(ctx)
		if err != nil {
			f.log.Error("Scheduled score refresh failed", zap.Error(err))
			continue
		}
		f.log.Info("Scheduled score refresh queued", zap.Int("projects", n))
	}
}

// RefreshAll 将所有已发布项目加入队列，返回数量
func (f *ProjectFeed) RefreshAll(ctx context.Context) (int, error) {
	projects, err := f.store.ListProjects(ctx, store.ProjectQuery{PublishedOnly: true})
	if err != nil {
		return 0, err
	}
	for _, p := range projects {
		f.Touch(p.ID)
	}
	return len(projects), nil
}

// RefreshNow 同步重算所有已发布项目的热度，不经过队列（命令行使用）
func (f *ProjectFeed) RefreshNow(ctx context.Context) (int, error) {
	projects, err := f.store.ListProjects(ctx, store.ProjectQuery{PublishedOnly: true})
	if err != nil {
		return 0, err
	}
	for _, p := range projects {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		f.process(ctx, p.ID)
	}
	return len(projects), nil
}
