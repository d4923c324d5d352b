package favorites

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps each customer's favorite companies as a Redis set keyed by
// phone number. The browser client used to keep this list in localStorage;
// holding it behind an injected handle means every device and server-rendered
// page sees the same list. Entries expire after the TTL so the cache never
// needs explicit cleanup.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func key(phone string) string {
	return "favorites:" + phone
}

func (s *Store) Add(ctx context.Context, phone, companyID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, key(phone), companyID)
	pipe.Expire(ctx, key(phone), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, phone, companyID string) error {
	return s.rdb.SRem(ctx, key(phone), companyID).Err()
}

func (s *Store) List(ctx context.Context, phone string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, key(phone)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
