package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// releaseScript deletes the claim only when this instance still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionCache keeps short-lived shared state in Redis. For logins it holds
// the single valid token ID. For running tests it holds the ownership
// claim, the latest snapshot, the event channel and the answer audit queue.
type SessionCache struct {
	rdb        *redis.Client
	instanceID string
}

// NewSessionCache creates a SessionCache acting for instanceID.
func NewSessionCache(rdb *redis.Client, instanceID string) *SessionCache {
	return &SessionCache{rdb: rdb, instanceID: instanceID}
}

// StoreLogin records jti as the user's only valid login.
func (c *SessionCache) StoreLogin(ctx context.Context, userID int, jti string, ttl time.Duration) error {
	return c.rdb.Set(ctx, config.CacheKey.UserSessionKey(userID), jti, ttl).Err()
}

// LoginJTI returns the user's valid login, or "" when signed out.
func (c *SessionCache) LoginJTI(ctx context.Context, userID int) (string, error) {
	jti, err := c.rdb.Get(ctx, config.CacheKey.UserSessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return jti, err
}

// DeleteLogin signs the user out everywhere.
func (c *SessionCache) DeleteLogin(ctx context.Context, userID int) error {
	return c.rdb.Del(ctx, config.CacheKey.UserSessionKey(userID)).Err()
}

// Claim takes ownership of userID's running test for ttl. It succeeds when
// the claim is free or already held by this instance.
func (c *SessionCache) Claim(ctx context.Context, userID int, ttl time.Duration) (bool, error) {
	key := config.CacheKey.ActiveSessionKey(userID)

	ok, err := c.rdb.SetNX(ctx, key, c.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim session: %w", err)
	}
	if ok {
		return true, nil
	}

	owner, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return c.rdb.SetNX(ctx, key, c.instanceID, ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("read session owner: %w", err)
	}
	if owner != c.instanceID {
		return false, nil
	}
	return true, c.rdb.Expire(ctx, key, ttl).Err()
}

// Release drops the claim if this instance owns it.
func (c *SessionCache) Release(ctx context.Context, userID int) error {
	return releaseScript.Run(ctx, c.rdb, []string{config.CacheKey.ActiveSessionKey(userID)}, c.instanceID).Err()
}

// SaveSnapshot stores the latest state of a running test.
func (c *SessionCache) SaveSnapshot(ctx context.Context, snap engine.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.SessionSnapshotKey(snap.UserID), data, ttl).Err()
}

// LoadSnapshot returns the stored snapshot, or nil when there is none.
func (c *SessionCache) LoadSnapshot(ctx context.Context, userID int) (*engine.Snapshot, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// DeleteSnapshot removes the stored snapshot.
func (c *SessionCache) DeleteSnapshot(ctx context.Context, userID int) error {
	return c.rdb.Del(ctx, config.CacheKey.SessionSnapshotKey(userID)).Err()
}

// Publish sends an encoded event to the user's subscribers.
func (c *SessionCache) Publish(ctx context.Context, userID int, payload []byte) error {
	return c.rdb.Publish(ctx, config.CacheKey.SessionEventChannel(userID), payload).Err()
}

// Subscribe opens a subscription to the user's event channel. The caller
// closes it.
func (c *SessionCache) Subscribe(ctx context.Context, userID int) *redis.PubSub {
	return c.rdb.Subscribe(ctx, config.CacheKey.SessionEventChannel(userID))
}

// QueueAnswerAudit pushes an accepted selection onto the audit queue.
func (c *SessionCache) QueueAnswerAudit(ctx context.Context, event model.AnswerAuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err()
}

// CountActive counts claimed sessions across all instances.
func (c *SessionCache) CountActive(ctx context.Context) (int, error) {
	n := 0
	iter := c.rdb.Scan(ctx, 0, config.CacheKey.ActiveSessionPattern(), 200).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// PopAnswerAudit takes the oldest queued selection. A positive wait blocks
// up to that long; otherwise the call returns at once. It returns nil, nil
// when the queue is empty. Undecodable entries are dropped with an error.
func (c *SessionCache) PopAnswerAudit(ctx context.Context, wait time.Duration) (*model.AnswerAuditEvent, error) {
	var raw string
	if wait > 0 {
		res, err := c.rdb.BLPop(ctx, wait, config.WorkerKey.PersistAnswersQueue).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if len(res) < 2 {
			return nil, nil
		}
		raw = res[1]
	} else {
		res, err := c.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		raw = res
	}

	var event model.AnswerAuditEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("decode answer audit: %w", err)
	}
	return &event, nil
}
