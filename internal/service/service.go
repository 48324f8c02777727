package service

import (
	"context"
	"fmt"

	"simpleweb3/internal/config"
	"simpleweb3/internal/gas"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/storage"
	"simpleweb3/internal/warehouse"

	"github.com/redis/go-redis/v9"
)

// Service holds the shared clients built from config
type Service struct {
	Config       *config.Config
	Logger       logger.Logger
	Redis        *redis.Client
	Warehouse    *warehouse.BigQuery
	Exports      *ExportService
	Transactions *TransactionServiceImpl
}

// NewService connects the optional backends. Missing warehouse credentials
// or RPC endpoints disable the matching routes instead of failing startup.
func NewService(ctx context.Context, cfg *config.Config, l logger.Logger) (*Service, error) {
	s := &Service{Config: cfg, Logger: l}

	var cache FeeCache
	if cfg.RedisURL != "" {
		rdb, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s.Redis = rdb
		cache = storage.NewFeeStorage(rdb, l, cfg.Fees.CacheTTL)
	} else {
		l.Info("REDIS_URL not set, fee cache disabled")
	}

	var querier warehouse.Querier
	if cfg.GoogleCredentials != "" && cfg.GoogleProjectID != "" {
		bq, err := warehouse.NewBigQuery(ctx, cfg.GoogleProjectID, cfg.GoogleCredentials, cfg.Export.Table, cfg.Export.JobTimeout, l)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Warehouse = bq
		querier = bq
	} else {
		l.Warn("GOOGLE_CREDENTIALS_FILE and GOOGLE_PROJECT_ID must be set, validator export disabled")
	}
	s.Exports = NewExportService(querier, l)

	if len(cfg.Endpoints) == 0 {
		l.Warn("no rpc endpoints configured, transaction routes disabled")
		return s, nil
	}

	if err := cfg.DialEndpoints(ctx); err != nil {
		s.Close()
		return nil, err
	}
	ep, _ := cfg.Primary()
	chainID, err := ep.Client.ChainID(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("error getting chain id from %s: %w", ep.Name, err)
	}

	feeBounds, err := gas.NewFeeBounds(cfg.Gas)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Transactions = NewTransactionService(ep.Client, TransactionOptions{
		ChainID:     chainID.String(),
		Endpoint:    ep.Name,
		Limits:      gas.NewBounds(cfg.Gas),
		Fees:        feeBounds,
		SendTimeout: cfg.Fees.SendTimeout,
		Cache:       cache,
	}, l)
	l.Info("connected to rpc endpoint", logger.Fields{"name": ep.Name, "chain_id": chainID.String()})

	return s, nil
}

// Close releases every client. Safe to call on a partially built Service.
func (s *Service) Close() {
	if s.Warehouse != nil {
		if err := s.Warehouse.Close(); err != nil {
			s.Logger.Warn("error closing bigquery client", err)
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("error closing redis", err)
		}
	}
	s.Config.CloseEndpoints()
}
