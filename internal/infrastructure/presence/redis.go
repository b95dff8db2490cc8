package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

const (
	defaultKeyPrefix = "livedesk:presence:"
	fieldUser        = "user_id"
	fieldRoom        = "room_id"
)

var _ presence.Store = (*RedisStore)(nil)

// RedisStore shares presence across instances. Each connection is a hash
// {user_id, room_id}; each user has a set of connection ids. Both carry a TTL
// refreshed by Touch, so records of a crashed instance expire on their own.
// Set members whose hash has expired are pruned when read.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) connKey(connID ids.ConnectionID) string {
	return s.prefix + "conn:" + string(connID)
}

func (s *RedisStore) userKey(userID ids.UserID) string {
	return s.prefix + "user:" + userID.String()
}

func (s *RedisStore) Register(ctx context.Context, userID ids.UserID, connID ids.ConnectionID) error {
	connKey := s.connKey(connID)

	previous, err := s.client.HGet(ctx, connKey, fieldUser).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read presence record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != "" && previous != userID.String() {
			pipe.SRem(ctx, s.prefix+"user:"+previous, string(connID))
			pipe.HDel(ctx, connKey, fieldRoom)
		}
		pipe.HSet(ctx, connKey, fieldUser, userID.String())
		pipe.Expire(ctx, connKey, s.ttl)
		pipe.SAdd(ctx, s.userKey(userID), string(connID))
		pipe.Expire(ctx, s.userKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register connection: %w", err)
	}
	return nil
}

func (s *RedisStore) Unregister(ctx context.Context, connID ids.ConnectionID) error {
	connKey := s.connKey(connID)

	owner, err := s.client.HGet(ctx, connKey, fieldUser).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read presence record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, connKey)
		pipe.SRem(ctx, s.prefix+"user:"+owner, string(connID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to unregister connection: %w", err)
	}
	return nil
}

func (s *RedisStore) SetActiveRoom(ctx context.Context, connID ids.ConnectionID, roomID ids.RoomID) error {
	return s.updateRoom(ctx, connID, func(pipe redis.Pipeliner, key string) {
		pipe.HSet(ctx, key, fieldRoom, roomID.String())
	})
}

func (s *RedisStore) ClearActiveRoom(ctx context.Context, connID ids.ConnectionID) error {
	return s.updateRoom(ctx, connID, func(pipe redis.Pipeliner, key string) {
		pipe.HDel(ctx, key, fieldRoom)
	})
}

// updateRoom applies fn only to an existing record so an unknown or expired
// connection is never resurrected without its owner.
func (s *RedisStore) updateRoom(ctx context.Context, connID ids.ConnectionID, fn func(pipe redis.Pipeliner, key string)) error {
	key := s.connKey(connID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fn(pipe, key)
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to update active room: %w", err)
	}
	return nil
}

func (s *RedisStore) IsUserViewingRoom(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (bool, error) {
	if roomID == 0 {
		return false, nil
	}

	rooms, err := s.activeRooms(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, r := range rooms {
		if r == roomID {
			return true, nil
		}
	}
	return false, nil
}

func (s *RedisStore) UserConnections(ctx context.Context, userID ids.UserID) ([]ids.ConnectionID, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user connections: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		checks[i] = pipe.Exists(ctx, s.connKey(ids.ConnectionID(m)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check user connections: %w", err)
	}

	live := make([]ids.ConnectionID, 0, len(members))
	stale := make([]any, 0)
	for i, m := range members {
		if checks[i].Val() == 1 {
			live = append(live, ids.ConnectionID(m))
		} else {
			stale = append(stale, m)
		}
	}
	s.prune(ctx, userID, stale)
	return live, nil
}

// activeRooms returns the active room of every live connection of the user.
func (s *RedisStore) activeRooms(ctx context.Context, userID ids.UserID) ([]ids.RoomID, error) {
	members, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user connections: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HMGet(ctx, s.connKey(ids.ConnectionID(m)), fieldUser, fieldRoom)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read presence records: %w", err)
	}

	rooms := make([]ids.RoomID, 0, len(members))
	stale := make([]any, 0)
	for i, m := range members {
		vals := cmds[i].Val()
		owner, _ := vals[0].(string)
		if owner != userID.String() {
			stale = append(stale, m)
			continue
		}
		raw, _ := vals[1].(string)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		rooms = append(rooms, ids.RoomID(id))
	}
	s.prune(ctx, userID, stale)
	return rooms, nil
}

func (s *RedisStore) prune(ctx context.Context, userID ids.UserID, stale []any) {
	if len(stale) == 0 {
		return
	}
	// Best effort; a failed prune is retried on the next read.
	_ = s.client.SRem(ctx, s.userKey(userID), stale...).Err()
}

func (s *RedisStore) Touch(ctx context.Context, connID ids.ConnectionID) error {
	key := s.connKey(connID)

	owner, err := s.client.HGet(ctx, key, fieldUser).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("failed to read presence record: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, key, s.ttl)
		pipe.Expire(ctx, s.prefix+"user:"+owner, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh presence record: %w", err)
	}
	return nil
}
