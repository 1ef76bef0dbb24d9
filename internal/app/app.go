// Package app assembles the services shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"strings"

	"resolvex/backend/internal/auth"
	"resolvex/backend/internal/classifier"
	"resolvex/backend/internal/complaint"
	"resolvex/backend/internal/config"
	"resolvex/backend/internal/escalation"
	"resolvex/backend/internal/filestore"
	"resolvex/backend/internal/storage"
	"resolvex/backend/internal/users"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App is the wired dependency graph.
type App struct {
	Config     *config.Config
	Policy     config.Policy
	Storage    storage.Storage
	Files      *filestore.Store
	Complaints *complaint.Service
	Users      *users.Service

	closeFn func() error
	log     zerolog.Logger
}

// New connects storage, seeds categories and builds the services.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	policy, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Policy: policy, closeFn: func() error { return nil }, log: log}
	switch strings.ToLower(cfg.StorageDriver) {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		a.Storage = storage.NewMemory()
	default:
		s, closeFn, err := storage.Connect(ctx, cfg.DBDSN, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			return nil, err
		}
		a.Storage, a.closeFn = s, closeFn
	}

	cl, err := a.Classifier(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.Files, err = filestore.New(cfg.UploadDir, cfg.MaxUploadBytes()); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("init upload dir: %w", err)
	}

	a.Complaints = complaint.NewService(a.Storage, cl, escalation.NewPolicy(policy.DueWindows), a.Files, log)
	a.Users = users.NewService(a.Storage, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), log)
	return a, nil
}

// SeedCategories inserts the policy categories that are not stored yet.
func (a *App) SeedCategories(ctx context.Context) (int, error) {
	n, err := a.Storage.UpsertCategories(ctx, a.Policy.CategoryModels())
	if err != nil {
		return 0, fmt.Errorf("seed categories: %w", err)
	}
	return n, nil
}

// Classifier seeds the category table and builds a keyword classifier from
// what is stored, so categories edited in the database take effect.
func (a *App) Classifier(ctx context.Context) (*classifier.Keyword, error) {
	n, err := a.SeedCategories(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := a.Storage.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	a.log.Info().Int("seeded", n).Int("categories", len(cats)).Msg("classifier ready")
	return classifier.NewKeyword(cats, a.Policy.PriorityKeywords), nil
}

func (a *App) Close() error {
	return a.closeFn()
}
