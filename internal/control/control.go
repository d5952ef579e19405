// Package control wires configuration into a running watcher.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/taskwatcher/internal/core/config"
	redisclient "github.com/vietddude/taskwatcher/internal/infra/redis"
	"github.com/vietddude/taskwatcher/internal/infra/storage"
	"github.com/vietddude/taskwatcher/internal/infra/storage/file"
	"github.com/vietddude/taskwatcher/internal/infra/storage/memory"
	"github.com/vietddude/taskwatcher/internal/infra/storage/mongo"
	"github.com/vietddude/taskwatcher/internal/infra/storage/postgres"
)

// Stores holds the opened checkpoint and ledger backends together with the
// connections behind them.
type Stores struct {
	Checkpoint storage.CheckpointRepository
	Ledger     storage.CreditLedger

	db    *postgres.DB
	mongo *mongo.Database
	redis *redisclient.Client
}

// OpenStores connects the backends selected in cfg. Connections shared by
// the checkpoint and the ledger are opened once. Postgres migrations and
// mongo indexes are applied before returning.
func OpenStores(ctx context.Context, cfg *config.AppConfig) (*Stores, error) {
	s := &Stores{}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close(context.Background())
		}
	}()

	switch cfg.Checkpoint.Backend {
	case config.BackendFile:
		s.Checkpoint = file.NewCheckpointRepo(cfg.Checkpoint.Path)
	case config.BackendPostgres:
		db, err := s.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Checkpoint = postgres.NewCheckpointRepo(db, cfg.Checkpoint.Name)
	case config.BackendMongo:
		db, err := s.mongoDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Checkpoint = mongo.NewCheckpointRepo(db, cfg.Checkpoint.Name)
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend %q", cfg.Checkpoint.Backend)
	}

	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		db, err := s.postgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Ledger = postgres.NewCreditRepo(db)
	case config.BackendMongo:
		db, err := s.mongoDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.Ledger = mongo.NewCreditRepo(db)
	case config.BackendRedis:
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redis = client
		s.Ledger = redisclient.NewCreditRepo(client)
	case config.BackendMemory:
		slog.Warn("Using in-memory credit ledger, credits are lost on restart")
		s.Ledger = memory.NewCreditRepo(memory.NewMemoryStorage())
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Ledger.Backend)
	}

	slog.Info("Storage ready",
		"checkpoint", cfg.Checkpoint.Backend,
		"ledger", cfg.Ledger.Backend,
	)
	ok = true
	return s, nil
}

// DB returns the postgres connection, or nil when postgres is not in use.
func (s *Stores) DB() *postgres.DB {
	return s.db
}

// Close releases every opened connection.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	if s.mongo != nil {
		errs = append(errs, s.mongo.Close(ctx))
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}

func (s *Stores) postgres(ctx context.Context, cfg *config.AppConfig) (*postgres.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	s.db = db
	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return db, nil
}

func (s *Stores) mongoDB(ctx context.Context, cfg *config.AppConfig) (*mongo.Database, error) {
	if s.mongo != nil {
		return s.mongo, nil
	}
	db, err := mongo.NewDatabase(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	s.mongo = db
	if err := db.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
	}
	return db, nil
}
