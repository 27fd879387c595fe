package quota

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dotsync/dotsync/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuota(t *testing.T, ceiling int64, rate string) *QuotaService {
	t.Helper()
	sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "quota.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc, err := NewQuotaService(&Config{StorageCeiling: ceiling, PushRate: rate}, sqlDB)
	require.NoError(t, err)
	return svc
}

func TestChargeAndRelease(t *testing.T) {
	ctx := context.Background()
	svc := testQuota(t, 100, "100-M")

	require.NoError(t, svc.Charge(ctx, "alice@example.com", 60))

	used, err := svc.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(60), used)

	// would exceed the ceiling, ledger unchanged
	err = svc.Charge(ctx, "alice@example.com", 50)
	assert.ErrorIs(t, err, ErrStorageExceeded)

	used, err = svc.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(60), used)

	// exactly at the ceiling is fine
	require.NoError(t, svc.Charge(ctx, "alice@example.com", 40))

	require.NoError(t, svc.Release(ctx, "alice@example.com", 30))
	used, err = svc.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(70), used)
}

func TestUsedDistinguishesMissingRowFromFailure(t *testing.T) {
	ctx := context.Background()
	svc := testQuota(t, 100, "100-M")

	// a user with no ledger row yet reads as zero, not an error
	used, err := svc.Used(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	// a real database failure must surface, not masquerade as zero
	require.NoError(t, svc.db.Close())
	_, err = svc.Used(ctx, "nobody@example.com")
	assert.Error(t, err)
}

func TestLedgersAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := testQuota(t, 100, "100-M")

	require.NoError(t, svc.Charge(ctx, "alice@example.com", 90))
	require.NoError(t, svc.Charge(ctx, "bob@example.com", 90))

	used, err := svc.Used(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(90), used)
}

func TestConsumeToken(t *testing.T) {
	ctx := context.Background()
	svc := testQuota(t, 100, "2-M")

	require.NoError(t, svc.ConsumeToken(ctx, "alice@example.com"))
	require.NoError(t, svc.ConsumeToken(ctx, "alice@example.com"))

	err := svc.ConsumeToken(ctx, "alice@example.com")
	require.Error(t, err)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Greater(t, rlErr.RetryAfter.Seconds(), 0.0)

	// other users have their own bucket
	assert.NoError(t, svc.ConsumeToken(ctx, "bob@example.com"))
}
