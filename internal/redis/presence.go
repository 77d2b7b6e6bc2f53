package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
)

// Idle rooms eventually drop out of the presence index instead of
// accumulating forever.
const presenceTTL = 7 * 24 * time.Hour

// PresenceStore records which rooms currently have live sessions. It outlives
// room actors: a suspended actor's room stays queryable through it.
type PresenceStore struct {
	rdb   *goredis.Client
	clock clockwork.Clock
}

func NewPresenceStore(client *Client, clock clockwork.Clock) *PresenceStore {
	return &PresenceStore{rdb: client.Underlying(), clock: clock}
}

var _ domain.PresenceStore = (*PresenceStore)(nil)

// Activate marks a room live. The active_since timestamp is only written on
// the inactive-to-active transition, so reconnect churn does not reset it.
func (s *PresenceStore) Activate(ctx context.Context, roomID string) error {
	key := presenceKey(roomID)
	now := s.clock.Now().UTC()

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, "active", "1")
		pipe.HSetNX(ctx, key, "active_since", strconv.FormatInt(now.UnixMilli(), 10))
		pipe.Expire(ctx, key, presenceTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to activate presence for room %s: %w", roomID, err)
	}
	return nil
}

// Deactivate marks a room idle and clears its active_since mark.
func (s *PresenceStore) Deactivate(ctx context.Context, roomID string) error {
	key := presenceKey(roomID)

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, "active", "0")
		pipe.HDel(ctx, key, "active_since")
		pipe.Expire(ctx, key, presenceTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate presence for room %s: %w", roomID, err)
	}
	return nil
}

// Get returns a room's presence record. Unknown rooms are simply inactive.
func (s *PresenceStore) Get(ctx context.Context, roomID string) (*domain.RoomPresence, error) {
	vals, err := s.rdb.HMGet(ctx, presenceKey(roomID), "active", "active_since").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence for room %s: %w", roomID, err)
	}

	presence := &domain.RoomPresence{}
	if vals[0] != nil {
		presence.Active = vals[0].(string) == "1"
	}
	if vals[1] != nil {
		ms, err := strconv.ParseInt(vals[1].(string), 10, 64)
		if err == nil {
			presence.ActiveSince = time.UnixMilli(ms).UTC()
		}
	}

	return presence, nil
}

func presenceKey(roomID string) string {
	return "presence:" + roomID
}
