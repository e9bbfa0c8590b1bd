package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch is returned when a rotation presents a hash that
// does not match the stored one. The store has already deleted the session
// by the time this error is returned; a mismatch means the token was either
// already rotated away or stolen, and in both cases every outstanding copy
// must die.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrSessionCorrupt is returned when a stored blob cannot be parsed.
var ErrSessionCorrupt = errors.New("session blob corrupt")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusMismatch    int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusInvalidBlob int64 = 4
)

// Reuses an already-indexed session id so a device never accumulates more
// than one session. KEYS: device index, user set. ARGV: candidate session
// id, session key prefix, blob, ttl ms.
const upsertScript = `
local sid = redis.call("GET", KEYS[1])
if not sid then
  sid = ARGV[1]
end
redis.call("SET", ARGV[2] .. sid, ARGV[3], "PX", tonumber(ARGV[4]))
redis.call("SET", KEYS[1], sid, "PX", tonumber(ARGV[4]))
redis.call("SADD", KEYS[2], sid)
return sid
`

var upsertLua = redis.NewScript(upsertScript)

// Compare-and-swap on the refresh hash. The blob tail is fixed size
// ([hash 32][created 8][updated 8]) so the script splices from the end
// instead of parsing the variable-length fields. ARGV: provided hash,
// next hash, new updated-at (8 raw bytes, big endian), ttl ms.
const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
if #data < 49 then
  return {4}
end

local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
  redis.call("DEL", KEYS[1])
  return {1, data}
end

local hash = string.sub(data, #data - 47, #data - 16)
if hash ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return {2, data}
end

local updated = string.sub(data, 1, #data - 48) .. ARGV[2] .. string.sub(data, #data - 15, #data - 8) .. ARGV[3]
redis.call("SET", KEYS[1], updated, "PX", tonumber(ARGV[4]))
return {3, updated}
`

var rotateLua = redis.NewScript(rotateScript)

// KEYS: session key, device index, user set. ARGV: session id.
// The device index is only removed while it still points at this session.
const deleteScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
if redis.call("GET", KEYS[2]) == ARGV[1] then
  redis.call("DEL", KEYS[2])
end
redis.call("SREM", KEYS[3], ARGV[1])
return existed
`

var deleteLua = redis.NewScript(deleteScript)

// Store keeps per-device sessions in Redis: an encoded blob per session, a
// device index mapping (user, device) to the session id, and a per-user set
// of session ids for listings.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) deviceKey(userID, deviceID string) string {
	return s.prefix + ":d:" + userID + ":" + deviceID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Upsert persists the session under its (user, device) slot. When the device
// already has a session the existing id is reused and the record replaced,
// which invalidates the device's previous refresh token. The stored id is
// written back to sess.ID.
func (s *Store) Upsert(ctx context.Context, sess *Session, ttl time.Duration) (*Session, error) {
	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	result, err := upsertLua.Run(
		ctx,
		s.redis,
		[]string{s.deviceKey(sess.UserID, sess.DeviceID), s.userKey(sess.UserID)},
		sess.ID,
		s.prefix+":s:",
		data,
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sid, ok := result.(string)
	if !ok || sid == "" {
		return nil, fmt.Errorf("%w: invalid upsert script response", ErrRedisUnavailable)
	}

	sess.ID = sid
	return sess, nil
}

// Get retrieves a session by id. Returns redis.Nil when absent.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.ID = sessionID

	return sess, nil
}

// GetByDevice resolves the session for a (user, device) pair through the
// device index. Returns redis.Nil when the device has no live session. A
// stale index entry pointing at an expired session is pruned on the way.
func (s *Store) GetByDevice(ctx context.Context, userID, deviceID string) (*Session, error) {
	sid, err := s.redis.Get(ctx, s.deviceKey(userID, deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			_ = s.redis.Del(ctx, s.deviceKey(userID, deviceID)).Err()
			_ = s.redis.SRem(ctx, s.userKey(userID), sid).Err()
		}
		return nil, err
	}

	return sess, nil
}

// ListByUser returns the user's live sessions ordered by creation time.
// Session ids whose blobs have expired are pruned from the set.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, sid := range ids {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, decErr)
		}
		sess.ID = ids[i]
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.userKey(userID), stale...).Err()
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt != sessions[j].CreatedAt {
			return sessions[i].CreatedAt < sessions[j].CreatedAt
		}
		return sessions[i].ID < sessions[j].ID
	})

	return sessions, nil
}

// Rotate atomically swaps the refresh hash when the provided hash matches
// the stored one, renewing the session TTL and UpdatedAt. On mismatch the
// session is deleted inside the script and ErrRefreshHashMismatch is
// returned; exactly one of two concurrent rotations can win.
func (s *Store) Rotate(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	nextHash [32]byte,
	ttl time.Duration,
) (*Session, error) {
	var updatedAt [8]byte
	binary.BigEndian.PutUint64(updatedAt[:], uint64(time.Now().Unix()))

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sessionID)},
		providedHash[:],
		nextHash[:],
		updatedAt[:],
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, redis.Nil
	case rotateStatusExpired, rotateStatusMismatch:
		// The script deleted the blob; the indexes still point at it.
		if sess := decodeScriptBlob(parts); sess != nil {
			sess.ID = sessionID
			_ = s.redis.Del(ctx, s.deviceKey(sess.UserID, sess.DeviceID)).Err()
			_ = s.redis.SRem(ctx, s.userKey(sess.UserID), sessionID).Err()
		}
		if code == rotateStatusExpired {
			return nil, redis.Nil
		}
		return nil, ErrRefreshHashMismatch
	case rotateStatusRotated:
		sess := decodeScriptBlob(parts)
		if sess == nil {
			return nil, fmt.Errorf("%w: missing rotated session payload", ErrRedisUnavailable)
		}
		sess.ID = sessionID

		// Keep the device index alive as long as the session itself.
		if err := s.redis.PExpire(ctx, s.deviceKey(sess.UserID, sess.DeviceID), ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return sess, nil
	case rotateStatusInvalidBlob:
		return nil, ErrSessionCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Delete removes the session blob, its device index entry, and its user set
// membership. Deleting an absent session is a no-op.
func (s *Store) Delete(ctx context.Context, sess *Session) error {
	_, err := deleteLua.Run(
		ctx,
		s.redis,
		[]string{
			s.key(sess.ID),
			s.deviceKey(sess.UserID, sess.DeviceID),
			s.userKey(sess.UserID),
		},
		sess.ID,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Ping reports Redis availability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func decodeScriptBlob(parts []interface{}) *Session {
	if len(parts) < 2 {
		return nil
	}

	var blob []byte
	switch v := parts[1].(type) {
	case string:
		blob = []byte(v)
	case []byte:
		blob = v
	default:
		return nil
	}

	sess, err := Decode(blob)
	if err != nil {
		return nil
	}
	return sess
}
