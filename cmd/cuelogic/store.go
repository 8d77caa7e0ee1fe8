package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/database"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// projectStore is a project store that also keeps the execution log.
type projectStore interface {
	project.Store
	project.ExecutionLog
}

// storage is the opened persistence backend.
type storage struct {
	store projectStore

	// audit and users are nil for the redis backend.
	audit audit.Repository
	users auth.UserRepository

	close func() error
}

// openStorage opens the configured backend.
func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		st := project.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB,
			project.WithPrefix(cfg.Redis.Prefix))
		if err := st.Ping(ctx); err != nil {
			st.Close() //nolint:errcheck // Already failing
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return &storage{store: st, close: st.Close}, nil

	default:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		st, err := project.NewSQLiteStore(ctx, db)
		if err != nil {
			db.Close() //nolint:errcheck // Already failing
			return nil, err
		}
		return &storage{
			store: st,
			audit: audit.NewSQLiteRepository(db.DB),
			users: auth.NewUserRepository(db.DB),
			close: db.Close,
		}, nil
	}
}

// errNoUserStore is returned by account commands on the redis backend.
var errNoUserStore = errors.New("operator accounts require the sqlite store")

// newAuthService builds the auth service on the opened storage and seeds
// the first admin account.
func newAuthService(ctx context.Context, cfg *config.Config, st *storage, logger auth.Logger) (*auth.Service, error) {
	if st.users == nil {
		return nil, errNoUserStore
	}
	issuer, err := auth.NewIssuer(cfg.API.Auth.Secret, cfg.TokenTTL())
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(st.users, issuer, auth.DefaultHasher, logger)
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	if _, err := svc.SeedAdmin(ctx, cfg.API.Auth.AdminUsername, cfg.API.Auth.AdminPassword); err != nil {
		return nil, fmt.Errorf("seeding admin account: %w", err)
	}
	return svc, nil
}
