package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
	"simpleweb3/utils"

	"github.com/redis/go-redis/v9"
)

// historyLength caps the per-chain snapshot history list
const historyLength = 100

// FeeStorage caches fee snapshots per chain in Redis
type FeeStorage struct {
	rdb    *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing REDIS_URL: %w", err)
	}

	rdb := redis.NewClient(redisOptions)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return rdb, nil
}

func NewFeeStorage(rdb *redis.Client, l logger.Logger, ttl time.Duration) *FeeStorage {
	return &FeeStorage{
		rdb:    rdb,
		logger: l.WithFields(logger.Fields{"component": "fee_storage"}),
		ttl:    ttl,
	}
}

// Latest returns the cached snapshot for chain, or nil when it expired.
func (s *FeeStorage) Latest(ctx context.Context, chain string) (*model.FeeSnapshot, error) {
	val, err := s.rdb.Get(ctx, utils.RedisFeeLatestKey(chain)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting fee snapshot for %s: %w", chain, err)
	}

	var snap model.FeeSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("error unmarshaling fee snapshot: %w", err)
	}
	return &snap, nil
}

// Store caches snap as the latest value for its chain and prepends it to the history.
func (s *FeeStorage) Store(ctx context.Context, snap *model.FeeSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("error marshaling fee snapshot: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, utils.RedisFeeLatestKey(snap.ChainID), data, s.ttl)
	pipe.LPush(ctx, utils.RedisFeeHistoryKey(snap.ChainID), data)
	pipe.LTrim(ctx, utils.RedisFeeHistoryKey(snap.ChainID), 0, historyLength-1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error storing fee snapshot for %s: %w", snap.ChainID, err)
	}
	return nil
}

// History returns up to n snapshots for chain, newest first. Undecodable entries are skipped.
func (s *FeeStorage) History(ctx context.Context, chain string, n int64) ([]model.FeeSnapshot, error) {
	if n <= 0 || n > historyLength {
		n = historyLength
	}
	vals, err := s.rdb.LRange(ctx, utils.RedisFeeHistoryKey(chain), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("error getting fee history for %s: %w", chain, err)
	}

	out := make([]model.FeeSnapshot, 0, len(vals))
	for _, v := range vals {
		var snap model.FeeSnapshot
		if err := json.Unmarshal([]byte(v), &snap); err != nil {
			s.logger.Warn("skipping undecodable fee snapshot", logger.Fields{"chain": chain, "error": err.Error()})
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}
