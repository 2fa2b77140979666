package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/migrate"
	"github.com/taoyao-code/worker-safety/internal/storage"
	"github.com/taoyao-code/worker-safety/internal/storage/gormrepo"
	"github.com/taoyao-code/worker-safety/internal/storage/memory"
	pgstorage "github.com/taoyao-code/worker-safety/internal/storage/pg"
)

// Store 存储句柄；Pool 为 nil 表示进程内存储
type Store struct {
	Repo storage.Repository
	Pool *pgxpool.Pool
}

// Close 释放连接池
func (s *Store) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore DSN 为空时使用进程内存储；否则连接 PostgreSQL、按需迁移并在连接池上打开 GORM
func OpenStore(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		log.Warn("database dsn empty, using in-memory store (data lost on restart)")
		return &Store{Repo: memory.New()}, nil
	}

	pool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.AutoMigrate {
		if err := (migrate.Runner{FS: migrate.Embedded(), Logger: log}).Up(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		log.Info("db migrations applied")
	}
	db, err := pgstorage.OpenGorm(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &Store{Repo: gormrepo.New(db), Pool: pool}, nil
}
