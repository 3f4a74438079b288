package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists fingerprint records in Redis. Keys carry a TTL matching
// the record's expiry, so stale entries clear themselves server-side.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Compile-time check to ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore over the given client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "domaindoctor:fingerprint:",
		now:    time.Now,
	}
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, rec Record) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// Nothing live to keep; make sure no older record lingers.
		return s.Clear(ctx, sessionID)
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.prefix+sessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving fingerprint record: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (Record, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("loading fingerprint record: %w", err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clearing fingerprint record: %w", err)
	}
	return nil
}
