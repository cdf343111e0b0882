package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/warden/pkg/accounts"
)

const (
	redisKeyPrefix = "warden:session:"
	redisSeqKey    = "warden:session-seq"
)

// RedisStore keeps session tokens in Redis with a key TTL matching each
// record's expiry. Account and role are read from accounts on lookup.
type RedisStore struct {
	client   *redis.Client
	accounts accounts.Store
	now      func() time.Time
}

// NewRedisStore creates a Redis-backed token store
func NewRedisStore(client *redis.Client, accountStore accounts.Store) *RedisStore {
	return &RedisStore{client: client, accounts: accountStore, now: time.Now}
}

func redisKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

// Put stores the record until its expiry
func (s *RedisStore) Put(ctx context.Context, t *Token) error {
	now := s.now()
	if err := prepare(t, now); err != nil {
		return err
	}
	ttl := t.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return ErrInvalidExpiry
	}

	id, err := s.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate session id: %w", err)
	}
	t.ID = id

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal session token: %w", err)
	}

	if err := s.client.Set(ctx, redisKey(t.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// FindByToken loads the record and joins its account. A record whose account
// no longer exists is treated as absent.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (*Record, error) {
	data, err := s.client.Get(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session token: %w", err)
	}

	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session token: %w", err)
	}
	if t.Token != token {
		return nil, nil
	}

	account, err := s.accounts.GetByID(ctx, t.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session account: %w", err)
	}
	if account == nil {
		return nil, nil
	}

	return &Record{Token: t, Account: account}, nil
}

// DeleteByToken removes the record if present
func (s *RedisStore) DeleteByToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts records when their TTL lapses
func (s *RedisStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
