package sync

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dotsync/dotsync/internal/db"
	"github.com/dotsync/dotsync/internal/merge"
	"github.com/dotsync/dotsync/internal/server/quota"
	"github.com/dotsync/dotsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T, ceiling int64) *SyncService {
	t.Helper()
	sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "sync.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := NewStore(sqlDB)
	require.NoError(t, err)

	quotaSvc, err := quota.NewQuotaService(&quota.Config{StorageCeiling: ceiling, PushRate: "1000-M"}, sqlDB)
	require.NoError(t, err)

	return NewSyncService(store, quotaSvc)
}

func push(path, content string) *PushEntry {
	return &PushEntry{
		Path:         path,
		Content:      content,
		Hash:         utils.ContentHash([]byte(content)),
		LastModified: 1000,
	}
}

func TestPushInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	results, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, int64(1), results[0].Version)

	// same device rewrites the file, version moves forward
	results, err = svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":2}`),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, int64(2), results[0].Version)
}

func TestPushIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	entry := push("settings.json", `{"a":1}`)

	results, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[0].Version)

	// identical content again, from either device, is a no-op success
	results, err = svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, int64(1), results[0].Version)

	results, err = svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{entry})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, int64(1), results[0].Version)

	used, err := svc.quota.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(len(entry.Content)), used)
}

func TestPushConflict(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
	})
	require.NoError(t, err)

	results, err := svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("settings.json", `{"a":2}`),
	})
	require.NoError(t, err)
	require.Equal(t, StatusConflict, results[0].Status)
	require.NotEmpty(t, results[0].ConflictID)

	// catalog entry stays on the side-A content
	entry, err := svc.store.GetEntry(ctx, "alice@example.com", "settings.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, entry.Content)
	assert.Equal(t, "dev-1", entry.DeviceID)

	conflicts, err := svc.Conflicts(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "dev-1", conflicts[0].DeviceA)
	assert.Equal(t, `{"a":1}`, conflicts[0].ContentA)
	assert.Equal(t, "dev-2", conflicts[0].DeviceB)
	assert.Equal(t, `{"a":2}`, conflicts[0].ContentB)
}

func TestPullExcludesOwnDevice(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
		push("notes.md", "# notes"),
	})
	require.NoError(t, err)

	// the pushing device never sees its own uploads, even from the epoch
	entries, err := svc.Pull(ctx, "alice@example.com", "dev-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = svc.Pull(ctx, "alice@example.com", "dev-2", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPullSinceCursor(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
	})
	require.NoError(t, err)

	entries, err := svc.Pull(ctx, "alice@example.com", "dev-2", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// the last entry's receipt time is the cursor for the next pull
	entries, err = svc.Pull(ctx, "alice@example.com", "dev-2", entries[0].SyncedAt)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPushQuotaPerEntry(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 10)

	// first entry fits, second would exceed, third fits in what's left
	results, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("a.json", "12345"),
		push("b.json", "1234567890"),
		push("c.json", "123"),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Contains(t, results[1].Message, "storage")
	assert.Equal(t, StatusSuccess, results[2].Status)
}

func TestResolveKeepRemote(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("notes.md", "alpha"),
	})
	require.NoError(t, err)

	results, err := svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("notes.md", "bravo"),
	})
	require.NoError(t, err)
	conflictID := results[0].ConflictID

	// dev-2 keeps its own copy: "remote" from dev-1's perspective is side B
	entry, err := svc.Resolve(ctx, "alice@example.com", "dev-1", conflictID, merge.KeepRemote, "")
	require.NoError(t, err)
	assert.Equal(t, "bravo", entry.Content)
	assert.Equal(t, int64(2), entry.Version)
	assert.Equal(t, "dev-1", entry.DeviceID)

	conflicts, err := svc.Conflicts(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestResolveIsOneShot(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("notes.md", "alpha"),
	})
	require.NoError(t, err)

	results, err := svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("notes.md", "bravo"),
	})
	require.NoError(t, err)
	conflictID := results[0].ConflictID

	_, err = svc.Resolve(ctx, "alice@example.com", "dev-1", conflictID, merge.KeepLocal, "")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "alice@example.com", "dev-1", conflictID, merge.KeepRemote, "")
	assert.ErrorIs(t, err, ErrConflictResolved)
}

func TestResolveKeepBothStructured(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1,"b":1}`),
	})
	require.NoError(t, err)

	results, err := svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("settings.json", `{"b":2,"c":3}`),
	})
	require.NoError(t, err)

	entry, err := svc.Resolve(ctx, "alice@example.com", "dev-2", results[0].ConflictID, merge.KeepBoth, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2,"c":3}`, entry.Content)
}

func TestResolveManualRequiresContent(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("notes.md", "alpha"),
	})
	require.NoError(t, err)

	results, err := svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("notes.md", "bravo"),
	})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "alice@example.com", "dev-1", results[0].ConflictID, merge.Manual, "")
	assert.ErrorIs(t, err, merge.ErrEmptyManualContent)

	// the failed attempt must not have consumed the conflict
	entry, err := svc.Resolve(ctx, "alice@example.com", "dev-1", results[0].ConflictID, merge.Manual, "charlie")
	require.NoError(t, err)
	assert.Equal(t, "charlie", entry.Content)
}

func TestResolveUnknownConflict(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Resolve(ctx, "alice@example.com", "dev-1", "no-such-id", merge.KeepLocal, "")
	assert.ErrorIs(t, err, ErrConflictNotFound)

	_, err = svc.Resolve(ctx, "alice@example.com", "dev-1", "no-such-id", "flip-coin", "")
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestChangeFeed(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
		push("notes.md", "alpha"),
	})
	require.NoError(t, err)

	_, err = svc.Push(ctx, "alice@example.com", "dev-2", []*PushEntry{
		push("notes.md", "bravo"),
	})
	require.NoError(t, err)

	feed, err := svc.ChangeFeed(ctx, "alice@example.com", "dev-2")
	require.NoError(t, err)
	assert.Len(t, feed.Entries, 2)
	require.Len(t, feed.Conflicts, 1)
	assert.Equal(t, "notes.md", feed.Conflicts[0].Path)

	// feed entries carry fingerprints only, never content
	for _, fe := range feed.Entries {
		assert.NotEmpty(t, fe.Hash)
		assert.NotEmpty(t, fe.DeviceID)
	}
}

func TestDeleteEntryReleasesQuota(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 100)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("a.json", "1234567890"),
	})
	require.NoError(t, err)

	used, err := svc.quota.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)

	require.NoError(t, svc.DeleteEntry(ctx, "alice@example.com", "a.json"))

	used, err = svc.quota.Used(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	// deleting an absent path is a no-op
	require.NoError(t, svc.DeleteEntry(ctx, "alice@example.com", "a.json"))
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("a.json", "12345"),
	})
	require.NoError(t, err)

	status, err := svc.Status(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Entries)
	assert.Equal(t, int64(5), status.StorageUsed)
	assert.Equal(t, int64(1<<20), status.StorageLimit)
	assert.Greater(t, status.LastSyncAt, int64(0))
}

func TestUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := testService(t, 1<<20)

	_, err := svc.Push(ctx, "alice@example.com", "dev-1", []*PushEntry{
		push("settings.json", `{"a":1}`),
	})
	require.NoError(t, err)

	entries, err := svc.Pull(ctx, "bob@example.com", "dev-9", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
