package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	userIndexPrefix  = "user_sessions:"
)

// RedisRepository implements the Repository interface using Redis.
// Records are JSON blobs keyed by jti, with a per-user sorted-set index
// scored by creation time for lineage queries.
type RedisRepository struct {
	client *redis.Client

	// Retention bounds how long records are kept for audit after issuance.
	// Zero means no expiration.
	Retention time.Duration
}

// NewRedisRepository creates a new Redis session repository
func NewRedisRepository(client *redis.Client, retention time.Duration) *RedisRepository {
	return &RedisRepository{
		client:    client,
		Retention: retention,
	}
}

func sessionKey(jti string) string {
	return sessionKeyPrefix + jti
}

func userIndexKey(userID uuid.UUID) string {
	return userIndexPrefix + userID.String()
}

// Persist inserts a new session record
func (r *RedisRepository) Persist(ctx context.Context, params CreateSessionParams) (*SessionRecord, error) {
	record := &SessionRecord{
		ID:             uuid.New(),
		UserID:         params.UserID,
		ImpersonatorID: params.ImpersonatorID,
		JTI:            params.JTI,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      time.Now().UTC(),
	}

	blob, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(params.JTI), blob, r.Retention).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateJTI
	}

	err = r.client.ZAdd(ctx, userIndexKey(params.UserID), redis.Z{
		Score:  float64(record.CreatedAt.UnixNano()),
		Member: params.JTI,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}
	if r.Retention > 0 {
		r.client.Expire(ctx, userIndexKey(params.UserID), r.Retention)
	}

	copied := *record
	return &copied, nil
}

func (r *RedisRepository) get(ctx context.Context, jti string) (*SessionRecord, error) {
	blob, err := r.client.Get(ctx, sessionKey(jti)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	record := &SessionRecord{}
	if err := json.Unmarshal(blob, record); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return record, nil
}

// IsActive reports whether a non-revoked record exists for jti
func (r *RedisRepository) IsActive(ctx context.Context, jti string) (bool, error) {
	record, err := r.get(ctx, jti)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	return record.RevokedAt == nil, nil
}

// Revoke marks the matching record revoked; idempotent. Concurrent revokes
// of the same jti may race on the read-modify-write; both converge on a
// revoked record.
func (r *RedisRepository) Revoke(ctx context.Context, userID uuid.UUID, jti string) error {
	record, err := r.get(ctx, jti)
	if err != nil {
		return err
	}
	if record == nil || record.UserID != userID || record.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	record.RevokedAt = &now

	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = r.client.Set(ctx, sessionKey(jti), blob, redis.KeepTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// LatestForUser returns the most-recently-created record for the user
func (r *RedisRepository) LatestForUser(ctx context.Context, userID uuid.UUID) (*SessionRecord, error) {
	jtis, err := r.client.ZRevRange(ctx, userIndexKey(userID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query session index: %w", err)
	}
	if len(jtis) == 0 {
		return nil, nil
	}

	return r.get(ctx, jtis[0])
}

// ListActiveForUser lists non-revoked, unexpired records for the user, newest first
func (r *RedisRepository) ListActiveForUser(ctx context.Context, userID uuid.UUID) ([]SessionRecord, error) {
	jtis, err := r.client.ZRevRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query session index: %w", err)
	}

	now := time.Now().UTC()
	var records []SessionRecord
	for _, jti := range jtis {
		record, err := r.get(ctx, jti)
		if err != nil {
			return nil, err
		}
		if record == nil || record.RevokedAt != nil || !record.ExpiresAt.After(now) {
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}
