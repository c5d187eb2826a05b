package identity

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// refreshStore persists refresh-token rows in Redis, keyed by the SHA-256 of
// the opaque value so the plaintext bearer secret never touches storage. A
// per-user index set supports bulk revocation.
//
// Consume, revoke, and bulk revocation are Lua scripts, so a refresh racing a
// revocation is serialized by Redis: exactly one side wins and the loser
// observes an already-used row. Expiry is enforced lazily at validation time;
// expired rows are never swept proactively, they simply never validate and
// fall out at their Redis TTL.
type refreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newRefreshStore(client redis.UniversalClient, prefix string) *refreshStore {
	return &refreshStore{redis: client, prefix: prefix}
}

func (s *refreshStore) tokenKey(tokenHash [32]byte) string {
	return s.prefix + ":rt:" + hex.EncodeToString(tokenHash[:])
}

func (s *refreshStore) userKey(userID string) string {
	return s.prefix + ":rtu:" + userID
}

// consumeScript marks the row used if and only if it is live: present, not
// yet used, not expired, and bound to the presented device. Returns
// {1, userID, scope} on success, {0, "", ""} otherwise.
const consumeScript = `
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  return {0, "", ""}
end
if redis.call("HGET", key, "used") then
  return {0, "", ""}
end
local exp = tonumber(redis.call("HGET", key, "exp") or "0")
if exp <= tonumber(ARGV[1]) then
  return {0, "", ""}
end
local device = redis.call("HGET", key, "device") or ""
if device ~= ARGV[2] then
  return {0, "", ""}
end
redis.call("HSET", key, "used", ARGV[1])
return {1, redis.call("HGET", key, "user"), redis.call("HGET", key, "scope") or ""}
`

var consumeLua = redis.NewScript(consumeScript)

// revokeScript is consume without the expiry check and without returning the
// owner: revoking an expired, spent, or absent row is a no-op, not an error.
const revokeScript = `
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
  return 0
end
if redis.call("HGET", key, "used") then
  return 0
end
local device = redis.call("HGET", key, "device") or ""
if device ~= ARGV[2] then
  return 0
end
redis.call("HSET", key, "used", ARGV[1])
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// revokeAllScript walks the user's index set, marking every live row used and
// pruning members whose rows already expired out of Redis.
const revokeAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local count = 0
local now = tonumber(ARGV[1])
for _, key in ipairs(members) do
  if redis.call("EXISTS", key) == 1 then
    local used = redis.call("HGET", key, "used")
    local exp = tonumber(redis.call("HGET", key, "exp") or "0")
    if (not used) and exp > now then
      redis.call("HSET", key, "used", ARGV[1])
      count = count + 1
    end
  else
    redis.call("SREM", KEYS[1], key)
  end
end
return count
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Save persists a fresh row and indexes it for the user. The row's Redis TTL
// is its natural expiry. scope is the space-joined scope set of the pair, so
// rotation can re-issue it without trusting caller input.
func (s *refreshStore) Save(
	ctx context.Context,
	userID, deviceID, scope string,
	tokenHash [32]byte,
	issuedAt, expiresAt time.Time,
) error {
	key := s.tokenKey(tokenHash)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user", userID,
			"device", deviceID,
			"scope", scope,
			"iat", strconv.FormatInt(issuedAt.Unix(), 10),
			"exp", strconv.FormatInt(expiresAt.Unix(), 10),
		)
		pipe.ExpireAt(ctx, key, expiresAt)
		pipe.SAdd(ctx, s.userKey(userID), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Consume atomically spends the row and returns the owning user and the scope
// the pair was issued with. ok is false for every non-live row; the caller
// must not learn which condition failed.
func (s *refreshStore) Consume(
	ctx context.Context,
	tokenHash [32]byte,
	deviceID string,
	now time.Time,
) (string, string, bool, error) {
	res, err := consumeLua.Run(ctx, s.redis,
		[]string{s.tokenKey(tokenHash)},
		strconv.FormatInt(now.Unix(), 10), deviceID,
	).Result()
	if err != nil {
		return "", "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 3 {
		return "", "", false, fmt.Errorf("%w: unexpected consume reply", ErrStoreUnavailable)
	}
	status, _ := parts[0].(int64)
	if status != 1 {
		return "", "", false, nil
	}
	userID, _ := parts[1].(string)
	scope, _ := parts[2].(string)
	return userID, scope, true, nil
}

// Revoke marks the row used. Idempotent: revoking an already-used or absent
// row reports false with no error.
func (s *refreshStore) Revoke(
	ctx context.Context,
	tokenHash [32]byte,
	deviceID string,
	now time.Time,
) (bool, error) {
	res, err := revokeLua.Run(ctx, s.redis,
		[]string{s.tokenKey(tokenHash)},
		strconv.FormatInt(now.Unix(), 10), deviceID,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res == 1, nil
}

// RevokeAllForUser marks every live row for the user as used and returns how
// many were spent.
func (s *refreshStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := revokeAllLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		strconv.FormatInt(now.Unix(), 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(res), nil
}
