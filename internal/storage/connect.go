package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenPostgres connects gorm to PostgreSQL with error translation enabled,
// which Service relies on for duplicate detection.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect PostgreSQL: %w", err)
	}
	return db, nil
}

// OpenRedis connects and pings Redis.
func OpenRedis(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return rdb, nil
}

// Connect opens PostgreSQL and Redis, migrates the schema and returns the
// store together with a function releasing both connections.
func Connect(ctx context.Context, dsn string, opts *redis.Options, log zerolog.Logger) (*Service, func() error, error) {
	db, err := OpenPostgres(dsn)
	if err != nil {
		return nil, nil, err
	}
	rdb, err := OpenRedis(ctx, opts)
	if err != nil {
		_ = closeDB(db)
		return nil, nil, err
	}
	s := NewStorageService(db, rdb, log)
	if err := s.Migrate(ctx); err != nil {
		_ = rdb.Close()
		_ = closeDB(db)
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info().Msg("database and redis connections established, migrations complete")

	closeFn := func() error {
		return errors.Join(rdb.Close(), closeDB(db))
	}
	return s, closeFn, nil
}

// closeDB releases the connection pool behind db.
func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
