package services

import (
	"context"
	"math"
	"time"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LocationInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

type LocationService struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewLocationService(st store.Store, log *zap.Logger) *LocationService {
	return &LocationService{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Record 保存一次定位上报；actor 可以为空（匿名访客）
func (s *LocationService) Record(ctx context.Context, actor *identity.Actor, in LocationInput, userAgent, ip string) (*models.LocationPing, error) {
	switch {
	case !finite(in.Latitude) || in.Latitude < -90 || in.Latitude > 90:
		return nil, invalid("latitude must be between -90 and 90")
	case !finite(in.Longitude) || in.Longitude < -180 || in.Longitude > 180:
		return nil, invalid("longitude must be between -180 and 180")
	case !finite(in.Accuracy) || in.Accuracy < 0:
		return nil, invalid("accuracy must be a non-negative number")
	}
	if len(userAgent) > 500 {
		userAgent = userAgent[:500]
	}

	p := &models.LocationPing{
		ID:        uuid.NewString(),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Accuracy:  in.Accuracy,
		UserAgent: userAgent,
		IP:        ip,
		CreatedAt: s.now(),
	}
	if actor != nil {
		p.UserID = actor.UserID
	}
	if err := s.store.CreateLocationPing(ctx, p); err != nil {
		return nil, err
	}
	s.log.Debug("Location recorded", zap.String("ping_id", p.ID))
	return p, nil
}

func (s *LocationService) List(ctx context.Context, actor *identity.Actor, limit int) ([]models.LocationPing, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.store.ListLocationPings(ctx, limit)
}
