// Package storage keeps users, rooms, memberships and login sessions in Redis.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/palemoky/roomchat/internal/apperrors"
	"github.com/palemoky/roomchat/internal/logger"
)

// Each key kind is a fixed prefix followed by exactly one caller value, and
// no prefix starts another, so a user name can never spell another key.
const (
	userHashPrefix     = "user:"
	userRoomsPrefix    = "joined:"
	userOwnedPrefix    = "owned:"
	userSessionsPrefix = "sessions:"
	roomKeyPrefix      = "room:"
	roomMembersPrefix  = "members:"
	sessionKeyPrefix   = "session:"
	seqKey             = "roomchat:seq"

	// Room ids are 0000-9999.
	roomIDSpace = 10000
	// Random picks tried before scanning for a free id.
	roomIDAttempts = 64
)

func userKey(name string) string         { return userHashPrefix + name }
func userRoomsKey(name string) string    { return userRoomsPrefix + name }
func userOwnedKey(name string) string    { return userOwnedPrefix + name }
func userSessionsKey(name string) string { return userSessionsPrefix + name }
func roomKey(id string) string           { return roomKeyPrefix + id }
func roomMembersKey(id string) string    { return roomMembersPrefix + id }
func sessionKey(token string) string     { return sessionKeyPrefix + token }

// FormatRoomID renders n as a four digit room id.
func FormatRoomID(n int) string {
	return fmt.Sprintf("%04d", n)
}

// RedisStore Redis storage
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// nextSeq returns a global sequence number used as the sorted-set score so
// lists keep insertion order.
func (rs *RedisStore) nextSeq(ctx context.Context) (float64, error) {
	n, err := rs.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// --- users ---

// CreateUser stores a new user with its password hash.
func (rs *RedisStore) CreateUser(ctx context.Context, name, passwordHash string) error {
	ok, err := rs.client.SetNX(ctx, userKey(name), passwordHash, 0).Result()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if !ok {
		return apperrors.ErrUserExists
	}
	return nil
}

// PasswordHash returns the stored hash of name, or "" if the user does not
// exist.
func (rs *RedisStore) PasswordHash(ctx context.Context, name string) (string, error) {
	hash, err := rs.client.Get(ctx, userKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return hash, err
}

// SetPasswordHash replaces the hash of an existing user.
func (rs *RedisStore) SetPasswordHash(ctx context.Context, name, passwordHash string) error {
	ok, err := rs.client.SetXX(ctx, userKey(name), passwordHash, 0).Result()
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if !ok {
		return apperrors.ErrUnauthenticated
	}
	return nil
}

// DeleteUser removes the user, the rooms it owns, its memberships and its
// sessions. It returns the deleted rooms.
func (rs *RedisStore) DeleteUser(ctx context.Context, name string) ([]string, error) {
	owned, err := rs.OwnedRooms(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, id := range owned {
		if err := rs.DeleteRoom(ctx, id); err != nil {
			return nil, err
		}
	}

	joined, err := rs.JoinedRooms(ctx, name)
	if err != nil {
		return nil, err
	}
	tokens, err := rs.client.SMembers(ctx, userSessionsKey(name)).Result()
	if err != nil {
		return nil, err
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range joined {
			pipe.ZRem(ctx, roomMembersKey(id), name)
		}
		for _, token := range tokens {
			pipe.Del(ctx, sessionKey(token))
		}
		pipe.Del(ctx, userKey(name), userRoomsKey(name), userOwnedKey(name), userSessionsKey(name))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return owned, nil
}

// --- rooms ---

// CreateRoom allocates a free four digit id with master as owner and first
// member.
func (rs *RedisStore) CreateRoom(ctx context.Context, master string) (string, error) {
	claim := func(id string) (bool, error) {
		return rs.client.SetNX(ctx, roomKey(id), master, 0).Result()
	}

	id := ""
	for range roomIDAttempts {
		candidate := FormatRoomID(rand.IntN(roomIDSpace))
		ok, err := claim(candidate)
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		if ok {
			id = candidate
			break
		}
	}
	// Crowded id space: take the first free id.
	for n := 0; id == "" && n < roomIDSpace; n++ {
		ok, err := claim(FormatRoomID(n))
		if err != nil {
			return "", fmt.Errorf("create room: %w", err)
		}
		if ok {
			id = FormatRoomID(n)
		}
	}
	if id == "" {
		return "", errors.New("create room: no free room id")
	}

	if err := rs.settleRoom(ctx, id, master); err != nil {
		rs.releaseRoom(context.WithoutCancel(ctx), id, master)
		return "", fmt.Errorf("create room %s: %w", id, err)
	}
	return id, nil
}

// settleRoom records a freshly claimed id as owned by and joined by master.
func (rs *RedisStore) settleRoom(ctx context.Context, id, master string) error {
	seq, err := rs.nextSeq(ctx)
	if err != nil {
		return err
	}
	if err := rs.client.ZAdd(ctx, userOwnedKey(master), redis.Z{Score: seq, Member: id}).Err(); err != nil {
		return err
	}
	_, err = rs.AddMember(ctx, id, master)
	return err
}

// releaseRoom undoes a half-created room so its id is free again.
func (rs *RedisStore) releaseRoom(ctx context.Context, id, master string) {
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomKey(id), roomMembersKey(id))
		pipe.ZRem(ctx, userOwnedKey(master), id)
		pipe.ZRem(ctx, userRoomsKey(master), id)
		return nil
	})
	if err != nil {
		logger.L().Warn().Err(err).Str("room", id).Msg("release half-created room")
	}
}

// RoomMaster returns the owner of id. ok is false when the room does not
// exist.
func (rs *RedisStore) RoomMaster(ctx context.Context, id string) (master string, ok bool, err error) {
	master, err = rs.client.Get(ctx, roomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return master, true, nil
}

// DeleteRoom removes the room and every membership of it.
func (rs *RedisStore) DeleteRoom(ctx context.Context, id string) error {
	master, ok, err := rs.RoomMaster(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	members, err := rs.Members(ctx, id)
	if err != nil {
		return err
	}

	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range members {
			pipe.ZRem(ctx, userRoomsKey(name), id)
		}
		pipe.ZRem(ctx, userOwnedKey(master), id)
		pipe.Del(ctx, roomKey(id), roomMembersKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// AddMember records name as a member of id. added is false if it already was.
func (rs *RedisStore) AddMember(ctx context.Context, id, name string) (added bool, err error) {
	seq, err := rs.nextSeq(ctx)
	if err != nil {
		return false, err
	}
	var n *redis.IntCmd
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.ZAddNX(ctx, roomMembersKey(id), redis.Z{Score: seq, Member: name})
		pipe.ZAddNX(ctx, userRoomsKey(name), redis.Z{Score: seq, Member: id})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return n.Val() == 1, nil
}

// RemoveMember drops name from id.
func (rs *RedisStore) RemoveMember(ctx context.Context, id, name string) error {
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, roomMembersKey(id), name)
		pipe.ZRem(ctx, userRoomsKey(name), id)
		return nil
	})
	return err
}

// IsMember reports whether name belongs to id.
func (rs *RedisStore) IsMember(ctx context.Context, id, name string) (bool, error) {
	_, err := rs.client.ZScore(ctx, roomMembersKey(id), name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return err == nil, err
}

// Members lists the members of id in join order.
func (rs *RedisStore) Members(ctx context.Context, id string) ([]string, error) {
	return rs.client.ZRange(ctx, roomMembersKey(id), 0, -1).Result()
}

// OwnedRooms lists the rooms name created, oldest first.
func (rs *RedisStore) OwnedRooms(ctx context.Context, name string) ([]string, error) {
	return rs.client.ZRange(ctx, userOwnedKey(name), 0, -1).Result()
}

// JoinedRooms lists the rooms name belongs to, oldest first.
func (rs *RedisStore) JoinedRooms(ctx context.Context, name string) ([]string, error) {
	return rs.client.ZRange(ctx, userRoomsKey(name), 0, -1).Result()
}

// --- sessions ---

// CreateSession issues a login token for name valid for ttl.
func (rs *RedisStore) CreateSession(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), name, ttl)
		pipe.SAdd(ctx, userSessionsKey(name), token)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// SessionUser returns the user of token, or "" if it is unknown or expired.
func (rs *RedisStore) SessionUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	name, err := rs.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return name, err
}

// DeleteSession revokes token.
func (rs *RedisStore) DeleteSession(ctx context.Context, token string) error {
	name, err := rs.SessionUser(ctx, token)
	if err != nil || name == "" {
		return err
	}
	_, err = rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.SRem(ctx, userSessionsKey(name), token)
		return nil
	})
	return err
}
