package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// PresenceCache shares who-is-online state across server instances. Liveness
// is a logical TTL: the ZSet score is the expiry timestamp and heartbeats
// push it forward.
type PresenceCache interface {
	AddMember(ctx context.Context, title string, userID uint64, username string, ttl time.Duration) error
	RemoveMember(ctx context.Context, title string, userID uint64) error
	GetAliveMembersWithNames(ctx context.Context, title string) ([]PresenceMember, error)
	SetCursor(ctx context.Context, title string, userID uint64, jsonData []byte, ttl time.Duration) error
	GetCursor(ctx context.Context, title string, userID uint64) ([]byte, error)
}

type PresenceMember struct {
	UserID   uint64
	Username string
}

type redisPresence struct {
	rdb *redis.Client
}

func NewRedisPresence(rdb *redis.Client) PresenceCache {
	return &redisPresence{rdb: rdb}
}

// AddMember registers or refreshes a member; heartbeats just call it again.
func (p *redisPresence) AddMember(ctx context.Context, title string, userID uint64, username string, ttl time.Duration) error {
	tx := p.rdb.TxPipeline()
	expireAt := time.Now().Add(ttl).Unix()
	tx.ZAdd(ctx, roomKey(title), redis.Z{Score: float64(expireAt), Member: userID})
	tx.HSet(ctx, namesKey(title), userID, username)
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveMember(ctx context.Context, title string, userID uint64) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, roomKey(title), userID)
	tx.HDel(ctx, namesKey(title), strconv.FormatUint(userID, 10))
	_, err := tx.Exec(ctx)
	return err
}

func (p *redisPresence) SetCursor(ctx context.Context, title string, userID uint64, jsonData []byte, ttl time.Duration) error {
	return p.rdb.Set(ctx, cursorKey(title, userID), jsonData, ttl).Err()
}

func (p *redisPresence) GetCursor(ctx context.Context, title string, userID uint64) ([]byte, error) {
	return p.rdb.Get(ctx, cursorKey(title, userID)).Bytes()
}

func (p *redisPresence) GetAliveMembersWithNames(ctx context.Context, title string) ([]PresenceMember, error) {
	// Sweep expired members first, atomically with the name table.
	now := time.Now().Unix()
	luaScript := `
	-- KEYS[1] = roomKey(title)
	-- KEYS[2] = namesKey(title)
	-- ARGV[1] = now (unix seconds)

	local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	if #expired > 0 then
		redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
		redis.call("HDEL", KEYS[2], unpack(expired))
	end
	return #expired
	`

	script := redis.NewScript(luaScript)
	_, err := script.Run(ctx, p.rdb, []string{roomKey(title), namesKey(title)}, now).Int()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	aliveIDs, err := p.rdb.ZRangeByScore(ctx, roomKey(title), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	aliveIDsUint64 := make([]uint64, 0, len(aliveIDs))
	for _, aliveID := range aliveIDs {
		uid, err := strconv.ParseUint(aliveID, 10, 64)
		if err != nil {
			return nil, err
		}
		aliveIDsUint64 = append(aliveIDsUint64, uid)
	}

	names, err := p.rdb.HMGet(ctx, namesKey(title), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	members := make([]PresenceMember, 0, len(aliveIDsUint64))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		members = append(members, PresenceMember{UserID: aliveIDsUint64[i], Username: name})
	}
	return members, nil
}
