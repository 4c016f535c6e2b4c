package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfreitas/tokengate/internal"
	"github.com/mfreitas/tokengate/store"
)

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusExpired   int64 = 1
	rotateStatusNotActive int64 = 2
	rotateStatusRotated   int64 = 3
)

const rotateScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])

if redis.call("EXISTS", key) == 0 then
  return {0}
end

local expires = tonumber(redis.call("HGET", key, "expires_at") or "0")
if now > expires then
  return {1}
end

local status = redis.call("HGET", key, "status")
if status ~= "active" then
  return {2}
end

redis.call("HSET", key, "status", "rotated")

local user_id = redis.call("HGET", key, "user_id")
local issued = redis.call("HGET", key, "issued_at")
return {3, user_id, issued, tostring(expires)}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeAllScript = `
local user_key = KEYS[1]
local key_prefix = ARGV[1]
local revoked = 0

local ids = redis.call("SMEMBERS", user_key)
for _, id in ipairs(ids) do
  local key = key_prefix .. id
  local status = redis.call("HGET", key, "status")
  if status == "active" then
    redis.call("HSET", key, "status", "revoked")
    revoked = revoked + 1
  end
end

return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end

redis.call("HSET", KEYS[1], "status", ARGV[1])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Store is a Redis-backed refresh-token store. Records are hashes keyed
// by token ID with a per-user set as the secondary index. Keys carry no
// TTL: physical deletion happens only through PurgeExpired, so terminal
// records stay visible to reuse detection until they age out.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a Store on the given Redis client. prefix namespaces all
// keys; pass the same value across restarts.
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rt"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(tokenID string) string {
	return s.prefix + ":t:" + tokenID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create inserts a fresh Active record for the user.
//
//	Performance: 2 Redis commands in one transaction (HSET + SADD).
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (*store.Record, error) {
	id, err := internal.NewTokenID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := &store.Record{
		TokenID:   id.String(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		Status:    store.StatusActive,
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(rec.TokenID),
			"user_id", rec.UserID,
			"issued_at", rec.IssuedAt.Unix(),
			"expires_at", rec.ExpiresAt.Unix(),
			"status", string(rec.Status),
		)
		pipe.SAdd(ctx, s.userKey(userID), rec.TokenID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return rec, nil
}

// Lookup returns the record for the token ID, whatever its status.
//
//	Performance: 1 Redis HGETALL.
func (s *Store) Lookup(ctx context.Context, tokenID string) (*store.Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(tokenID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrTokenNotFound
	}

	return decodeRecord(tokenID, fields)
}

// MarkRotated atomically transitions Active to Rotated via a Lua CAS.
// This is the single reuse-detection point of the rotation protocol.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-swap).
func (s *Store) MarkRotated(ctx context.Context, tokenID string) (*store.Record, error) {
	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(tokenID)},
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", store.ErrUnavailable)
	}

	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", store.ErrUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, store.ErrTokenNotFound
	case rotateStatusExpired:
		return nil, store.ErrTokenExpired
	case rotateStatusNotActive:
		return nil, store.ErrTokenNotActive
	case rotateStatusRotated:
		if len(parts) < 4 {
			return nil, fmt.Errorf("%w: missing rotated record payload", store.ErrUnavailable)
		}

		userID, _ := parts[1].(string)
		issuedStr, _ := parts[2].(string)
		expiresStr, _ := parts[3].(string)

		issued, issErr := strconv.ParseInt(issuedStr, 10, 64)
		expires, expErr := strconv.ParseInt(expiresStr, 10, 64)
		if userID == "" || issErr != nil || expErr != nil {
			return nil, fmt.Errorf("%w: invalid rotated record payload", store.ErrUnavailable)
		}

		return &store.Record{
			TokenID:   tokenID,
			UserID:    userID,
			IssuedAt:  time.Unix(issued, 0),
			ExpiresAt: time.Unix(expires, 0),
			Status:    store.StatusRotated,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", store.ErrUnavailable)
	}
}

// Revoke transitions the record to Revoked. Missing records and records
// already in a terminal state are not errors. The existence check and
// the write run in one Lua script so a concurrent purge deleting the
// key cannot leave behind a partial status-only hash.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Revoke(ctx context.Context, tokenID string) error {
	err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.key(tokenID)},
		string(store.StatusRevoked),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForUser revokes every Active record of the user in a single
// Lua pass and returns how many transitioned.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	result, err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix+":t:",
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return int(result), nil
}

// PurgeExpired scans the token keyspace and deletes records past their
// expiry, cleaning the user index alongside. This is an admin-path O(n)
// operation and must not be used in request hot paths.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	pattern := s.prefix + ":t:*"
	nowUnix := now.Unix()

	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return total, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}

		if len(keys) > 0 {
			removed, err := s.purgeBatch(ctx, keys, nowUnix)
			if err != nil {
				return total, err
			}
			total += removed
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

func (s *Store) purgeBatch(ctx context.Context, keys []string, nowUnix int64) (int, error) {
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HMGet(ctx, key, "expires_at", "user_id")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	type victim struct {
		key     string
		tokenID string
		userID  string
	}
	var victims []victim

	for i, cmd := range cmds {
		vals, cmdErr := cmd.Result()
		if cmdErr != nil || len(vals) != 2 {
			continue
		}
		expiresStr, _ := vals[0].(string)
		userID, _ := vals[1].(string)
		expires, err := strconv.ParseInt(expiresStr, 10, 64)
		if err != nil {
			continue
		}
		// Purge scope is the expiry predicate only; status never matters here.
		if nowUnix > expires {
			victims = append(victims, victim{
				key:     keys[i],
				tokenID: strings.TrimPrefix(keys[i], s.prefix+":t:"),
				userID:  userID,
			})
		}
	}

	if len(victims) == 0 {
		return 0, nil
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range victims {
			pipe.Del(ctx, v.key)
			if v.userID != "" {
				pipe.SRem(ctx, s.userKey(v.userID), v.tokenID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return len(victims), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeRecord(tokenID string, fields map[string]string) (*store.Record, error) {
	issued, issErr := strconv.ParseInt(fields["issued_at"], 10, 64)
	expires, expErr := strconv.ParseInt(fields["expires_at"], 10, 64)
	userID := fields["user_id"]
	status := store.Status(fields["status"])

	if userID == "" || issErr != nil || expErr != nil {
		return nil, fmt.Errorf("%w: corrupt record for token", store.ErrUnavailable)
	}
	switch status {
	case store.StatusActive, store.StatusRotated, store.StatusRevoked:
	default:
		return nil, fmt.Errorf("%w: corrupt record status", store.ErrUnavailable)
	}

	return &store.Record{
		TokenID:   tokenID,
		UserID:    userID,
		IssuedAt:  time.Unix(issued, 0),
		ExpiresAt: time.Unix(expires, 0),
		Status:    status,
	}, nil
}
