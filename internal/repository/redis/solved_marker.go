package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arbiter-oj/arbiter/internal/repository"
)

var _ repository.SolvedMarkerStore = (*solvedMarker)(nil)

const markerKeyPrefix = "arbiter:solved:"

type solvedMarker struct {
	client *goredis.Client
}

// NewSolvedMarkerStore creates a Redis-backed recent-submission marker
// store. The marker's existence gates first-solve stats accounting.
func NewSolvedMarkerStore(client *goredis.Client) repository.SolvedMarkerStore {
	return &solvedMarker{client: client}
}

func markerKey(userID, problemID uuid.UUID) string {
	return markerKeyPrefix + userID.String() + ":" + problemID.String()
}

func (s *solvedMarker) Exists(ctx context.Context, userID, problemID uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, markerKey(userID, problemID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: marker exists: %w", err)
	}
	return n > 0, nil
}

// Upsert writes the marker with the latest timestamp. No TTL: the marker
// must outlive any cache so a re-accepted submission is never recounted.
func (s *solvedMarker) Upsert(ctx context.Context, userID, problemID uuid.UUID) error {
	err := s.client.Set(ctx, markerKey(userID, problemID), time.Now().UTC().Unix(), 0).Err()
	if err != nil {
		return fmt.Errorf("redis: marker upsert: %w", err)
	}
	return nil
}
