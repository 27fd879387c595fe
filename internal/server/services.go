package server

import (
	"fmt"

	"github.com/dotsync/dotsync/internal/server/auth"
	"github.com/dotsync/dotsync/internal/server/quota"
	"github.com/dotsync/dotsync/internal/server/sync"
	"github.com/jmoiron/sqlx"
)

type Services struct {
	Auth  *auth.AuthService
	Quota *quota.QuotaService
	Sync  *sync.SyncService
}

func NewServices(config *Config, db *sqlx.DB) (*Services, error) {
	authSvc := auth.NewAuthService(&config.Auth)

	quotaSvc, err := quota.NewQuotaService(&config.Quota, db)
	if err != nil {
		return nil, fmt.Errorf("create quota service: %w", err)
	}

	store, err := sync.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("create sync store: %w", err)
	}

	return &Services{
		Auth:  authSvc,
		Quota: quotaSvc,
		Sync:  sync.NewSyncService(store, quotaSvc),
	}, nil
}
