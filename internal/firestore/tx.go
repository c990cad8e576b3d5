package firestore

import (
	"context"
	"sort"
	"time"

	"portfolio/internal/models"
	"portfolio/internal/store"

	fs "cloud.google.com/go/firestore"
	"go.uber.org/zap"
)

// RunInTransaction 写操作先缓冲，fn 返回后按文档合并提交，
// 保证每个文档在一次提交中最多一个写入。Firestore 冲突重试时 fn 会被重新执行。
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var fnErr error
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *fs.Transaction) error {
		tx := &fsTx{client: s.client, t: t, log: s.log, pending: map[string]*write{}}
		fnErr = fn(ctx, tx)
		if fnErr != nil {
			return fnErr
		}
		return tx.flush()
	})
	if fnErr != nil {
		return fnErr
	}
	return wrap("transaction", err)
}

// write 单个文档上累积的写入
type write struct {
	ref    *fs.DocumentRef
	create interface{}
	merge  bool // 用户文档：Set+MergeAll，文档不存在时创建
	delete bool
	sets   map[string]interface{}
	incs   map[string]int64
	arrays map[string]interface{} // ArrayUnion / ArrayRemove
}

type fsTx struct {
	client  *fs.Client
	t       *fs.Transaction
	log     *zap.Logger
	order   []*write
	pending map[string]*write
}

func (tx *fsTx) doc(col, id string) *fs.DocumentRef {
	return tx.client.Collection(col).Doc(id)
}

func (tx *fsTx) at(ref *fs.DocumentRef) *write {
	if w, ok := tx.pending[ref.Path]; ok {
		return w
	}
	w := &write{
		ref:    ref,
		sets:   map[string]interface{}{},
		incs:   map[string]int64{},
		arrays: map[string]interface{}{},
	}
	tx.pending[ref.Path] = w
	tx.order = append(tx.order, w)
	return w
}

func (tx *fsTx) flush() error {
	for _, w := range tx.order {
		switch {
		case w.delete:
			if err := tx.t.Delete(w.ref); err != nil {
				return err
			}
			continue
		case w.create != nil:
			if err := tx.t.Create(w.ref, w.create); err != nil {
				return err
			}
		}

		if len(w.sets)+len(w.incs)+len(w.arrays) == 0 {
			continue
		}
		if w.merge {
			data := make(map[string]interface{}, len(w.sets)+len(w.incs))
			for k, v := range w.sets {
				data[k] = v
			}
			for k, n := range w.incs {
				data[k] = fs.Increment(n)
			}
			if err := tx.t.Set(w.ref, data, fs.MergeAll); err != nil {
				return err
			}
			continue
		}

		ups := make([]fs.Update, 0, len(w.sets)+len(w.incs)+len(w.arrays))
		for k, v := range w.sets {
			ups = append(ups, fs.Update{Path: k, Value: v})
		}
		for k, n := range w.incs {
			ups = append(ups, fs.Update{Path: k, Value: fs.Increment(n)})
		}
		for k, v := range w.arrays {
			ups = append(ups, fs.Update{Path: k, Value: v})
		}
		sort.Slice(ups, func(i, j int) bool { return ups[i].Path < ups[j].Path })
		if err := tx.t.Update(w.ref, ups); err != nil {
			return err
		}
	}
	return nil
}

func (tx *fsTx) GetProject(id string) (*models.Project, error) {
	snap, err := tx.t.Get(tx.doc(colProjects, id))
	if err != nil {
		return nil, wrap("get project", err)
	}
	return decodeProject(snap)
}

func (tx *fsTx) GetComment(id string) (*models.Comment, error) {
	snap, err := tx.t.Get(tx.doc(colComments, id))
	if err != nil {
		return nil, wrap("get comment", err)
	}
	return decodeComment(snap)
}

func (tx *fsTx) GetUser(id string) (*models.User, error) {
	snap, err := tx.t.Get(tx.doc(colUsers, id))
	if err != nil {
		return nil, wrap("get user", err)
	}
	return decodeUser(snap)
}

func (tx *fsTx) GetReaction(id string) (*models.Reaction, error) {
	snap, err := tx.t.Get(tx.doc(colReactions, id))
	if err != nil {
		return nil, wrap("get reaction", err)
	}
	return decodeReaction(snap)
}

func (tx *fsTx) ListComments(q store.CommentQuery) ([]models.Comment, error) {
	return decodeComments(tx.log, tx.t.Documents(commentQuery(tx.client, q)))
}

func (tx *fsTx) ListReactions(q store.ReactionQuery) ([]models.Reaction, error) {
	return decodeReactions(tx.log, tx.t.Documents(reactionQuery(tx.client, q)))
}

func (tx *fsTx) CreateComment(c *models.Comment) error {
	if c.UserLikes == nil {
		c.UserLikes = []string{}
	}
	tx.at(tx.doc(colComments, c.ID)).create = c
	return nil
}

func (tx *fsTx) UpdateComment(id string, f store.Fields) error {
	w := tx.at(tx.doc(colComments, id))
	for k, v := range f {
		w.sets[k] = v
	}
	return nil
}

func (tx *fsTx) DeleteComment(id string) error {
	tx.at(tx.doc(colComments, id)).delete = true
	return nil
}

func (tx *fsTx) AddCommentLike(commentID, userID string) error {
	w := tx.at(tx.doc(colComments, commentID))
	w.arrays[store.FieldUserLikes] = fs.ArrayUnion(userID)
	w.incs[store.FieldLikes]++
	return nil
}

func (tx *fsTx) RemoveCommentLike(commentID, userID string) error {
	w := tx.at(tx.doc(colComments, commentID))
	w.arrays[store.FieldUserLikes] = fs.ArrayRemove(userID)
	w.incs[store.FieldLikes]--
	return nil
}

func (tx *fsTx) CreateReaction(r *models.Reaction) error {
	tx.at(tx.doc(colReactions, r.ID)).create = r
	return nil
}

func (tx *fsTx) DeleteReaction(id string) error {
	tx.at(tx.doc(colReactions, id)).delete = true
	return nil
}

func (tx *fsTx) UpdateProject(id string, f store.Fields) error {
	w := tx.at(tx.doc(colProjects, id))
	for k, v := range f {
		w.sets[k] = v
	}
	return nil
}

func (tx *fsTx) DeleteProject(id string) error {
	tx.at(tx.doc(colProjects, id)).delete = true
	return nil
}

func (tx *fsTx) IncrementProject(id, field string, delta int64) error {
	tx.at(tx.doc(colProjects, id)).incs[field] += delta
	return nil
}

func (tx *fsTx) IncrementProjectReaction(id string, t models.ReactionType, delta int64) error {
	tx.at(tx.doc(colProjects, id)).incs["reactionsCount."+string(t)] += delta
	return nil
}

func (tx *fsTx) IncrementComment(id, field string, delta int64) error {
	tx.at(tx.doc(colComments, id)).incs[field] += delta
	return nil
}

func (tx *fsTx) BumpUser(id string, deltas map[string]int64, at time.Time) error {
	w := tx.at(tx.doc(colUsers, id))
	w.merge = true
	for k, d := range deltas {
		w.incs[k] += d
	}
	w.sets["lastActiveAt"] = at
	return nil
}

func (tx *fsTx) UpdateUser(id string, f store.Fields) error {
	w := tx.at(tx.doc(colUsers, id))
	for k, v := range f {
		w.sets[k] = v
	}
	return nil
}
