// Package quota enforces the two per-user resource limits at the protocol
// boundary: a storage ledger with a hard ceiling, and a token bucket on push
// attempts.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS user_quota (
    user         TEXT PRIMARY KEY,
    storage_used INTEGER NOT NULL DEFAULT 0
);
`

var (
	ErrStorageExceeded = errors.New("quota: storage ceiling exceeded")
)

// RateLimitError carries the wait the client should honor before retrying.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("quota: rate limited, retry after %s", e.RetryAfter)
}

const (
	DefaultStorageCeiling = int64(256 << 20) // 256MB per user
	DefaultPushRate       = "30-M"
)

type Config struct {
	// StorageCeiling is the per-user catalog size limit in bytes.
	StorageCeiling int64 `mapstructure:"storage_ceiling"`
	// PushRate is a formatted limiter rate, e.g. "30-M" for 30 pushes/minute.
	PushRate string `mapstructure:"push_rate"`
}

type QuotaService struct {
	db      *sqlx.DB
	ceiling int64
	pushes  *limiter.Limiter
}

func NewQuotaService(config *Config, db *sqlx.DB) (*QuotaService, error) {
	rate, err := limiter.NewRateFromFormatted(config.PushRate)
	if err != nil {
		return nil, fmt.Errorf("parse push rate %q: %w", config.PushRate, err)
	}

	if _, err := db.Exec(ledgerSchema); err != nil {
		return nil, fmt.Errorf("init quota ledger: %w", err)
	}

	return &QuotaService{
		db:      db,
		ceiling: config.StorageCeiling,
		pushes:  limiter.New(memory.NewStore(), rate),
	}, nil
}

func (s *QuotaService) Ceiling() int64 {
	return s.ceiling
}

// Charge attributes bytes to a user's ledger, atomically rejecting the charge
// if it would push the ledger past the ceiling. A zero or negative charge is
// a no-op.
func (s *QuotaService) Charge(ctx context.Context, user string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_quota (user, storage_used) VALUES (?, 0)`, user); err != nil {
		return fmt.Errorf("ensure ledger row: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_quota SET storage_used = storage_used + ? WHERE user = ? AND storage_used + ? <= ?`,
		bytes, user, bytes, s.ceiling)
	if err != nil {
		return fmt.Errorf("charge ledger: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("charge ledger: %w", err)
	}
	if affected == 0 {
		return ErrStorageExceeded
	}
	return nil
}

// Release gives bytes back to the ledger, clamping at zero.
func (s *QuotaService) Release(ctx context.Context, user string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE user_quota SET storage_used = MAX(0, storage_used - ?) WHERE user = ?`,
		bytes, user)
	if err != nil {
		return fmt.Errorf("release ledger: %w", err)
	}
	return nil
}

// Used returns the user's current ledger balance.
func (s *QuotaService) Used(ctx context.Context, user string) (int64, error) {
	var used int64
	err := s.db.GetContext(ctx, &used,
		`SELECT storage_used FROM user_quota WHERE user = ?`, user)
	if errors.Is(err, sql.ErrNoRows) {
		// no row means nothing stored yet
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	return used, nil
}

// ConsumeToken takes one token from the user's push bucket. Returns a
// RateLimitError carrying the retry-after delay when the bucket is empty.
func (s *QuotaService) ConsumeToken(ctx context.Context, user string) error {
	lctx, err := s.pushes.Get(ctx, user)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if lctx.Reached {
		retryAfter := time.Until(time.Unix(lctx.Reset, 0))
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}
