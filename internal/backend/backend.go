// Package backend opens the document store selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"launchpad/internal/config"
	"launchpad/internal/gitrepo"
	"launchpad/internal/store"
)

var ErrUnknownBackend = errors.New("unknown store backend")

// Closer releases the connections held by an opened store.
type Closer func() error

func noopCloser() error { return nil }

// Open builds the DocumentStore named by cfg.Backend. Postgres migrations are
// applied before the store is returned.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.DocumentStore, Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendFile, "":
		logger.Info("using file store", zap.String("path", cfg.DataFile))
		return store.NewFileStore(cfg.DataFile), noopCloser, nil

	case config.BackendGit:
		if err := os.MkdirAll(cfg.RepoDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create repo dir: %w", err)
		}
		logger.Info("using git store", zap.String("dir", cfg.RepoDir))
		return gitrepo.New(cfg.RepoDir, cfg.Author), noopCloser, nil

	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.ApplyMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		logger.Info("using postgres store", zap.String("document", cfg.DocumentKey))
		return store.NewPostgresStore(db, cfg.DocumentKey, cfg.Author), db.Close, nil

	case config.BackendRedis:
		redisStore, err := store.NewRedisStore(cfg.RedisURL, cfg.DocumentKey)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using redis store", zap.String("document", cfg.DocumentKey))
		return redisStore, redisStore.Close, nil

	case config.BackendS3:
		objectStore, err := store.NewObjectStore(ctx, store.ObjectConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
			Key:       cfg.DocumentKey,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using object store", zap.String("bucket", cfg.S3Bucket), zap.String("endpoint", cfg.S3Endpoint))
		return objectStore, noopCloser, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}
