package firestore

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// WatchProjectComments 监听项目评论集合，每个快照调用一次 notify，直到 ctx 结束
func (s *Store) WatchProjectComments(ctx context.Context, projectID string, notify func()) error {
	it := s.client.Collection(colComments).Where("projectId", "==", projectID).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
			return nil
		}
		if err != nil {
			return wrap("watch project comments", err)
		}
		s.log.Debug("Comment snapshot received",
			zap.String("project_id", projectID),
			zap.Int("changes", len(snap.Changes)),
		)
		notify()
	}
}
