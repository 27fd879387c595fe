package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS file_entries (
    user          TEXT NOT NULL,
    path          TEXT NOT NULL,
    content       TEXT NOT NULL,
    content_hash  TEXT NOT NULL,
    last_modified INTEGER NOT NULL,
    device_id     TEXT NOT NULL,
    version       INTEGER NOT NULL DEFAULT 1,
    synced_at     INTEGER NOT NULL,
    PRIMARY KEY (user, path)
);

CREATE INDEX IF NOT EXISTS idx_entries_synced ON file_entries(user, synced_at);
CREATE INDEX IF NOT EXISTS idx_entries_device ON file_entries(user, device_id);

CREATE TABLE IF NOT EXISTS conflicts (
    id          TEXT PRIMARY KEY,
    user        TEXT NOT NULL,
    path        TEXT NOT NULL,
    device_a    TEXT NOT NULL,
    content_a   TEXT NOT NULL,
    device_b    TEXT NOT NULL,
    content_b   TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    resolved_at INTEGER,
    resolution  TEXT
);

CREATE INDEX IF NOT EXISTS idx_conflicts_open ON conflicts(user, resolved_at);

CREATE TABLE IF NOT EXISTS user_sync (
    user         TEXT PRIMARY KEY,
    last_sync_at INTEGER NOT NULL
);
`

// Store is the catalog persistence layer: keyed lookup by (user, path),
// listing by user, and single-record mutations. All timestamps are ms epoch.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) (*Store, error) {
	if _, err := db.Exec(catalogSchema); err != nil {
		return nil, fmt.Errorf("init catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// GetEntry returns the current entry for (user, path), or nil when absent.
func (s *Store) GetEntry(ctx context.Context, user, path string) (*FileEntry, error) {
	var entry FileEntry
	err := s.db.GetContext(ctx, &entry,
		`SELECT * FROM file_entries WHERE user = ? AND path = ?`, user, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry %s: %w", path, err)
	}
	return &entry, nil
}

func (s *Store) InsertEntry(ctx context.Context, entry *FileEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO file_entries (user, path, content, content_hash, last_modified, device_id, version, synced_at)
		VALUES (:user, :path, :content, :content_hash, :last_modified, :device_id, :version, :synced_at)`,
		entry)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", entry.Path, err)
	}
	return nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry *FileEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE file_entries
		SET content = :content, content_hash = :content_hash, last_modified = :last_modified,
		    device_id = :device_id, version = :version, synced_at = :synced_at
		WHERE user = :user AND path = :path`,
		entry)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", entry.Path, err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, user, path string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM file_entries WHERE user = ? AND path = ?`, user, path)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", path, err)
	}
	return nil
}

// ListEntriesSince returns every entry not last written by excludeDevice,
// received after since. since of 0 returns everything from other devices.
func (s *Store) ListEntriesSince(ctx context.Context, user, excludeDevice string, since int64) ([]*FileEntry, error) {
	var entries []*FileEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM file_entries
		WHERE user = ? AND device_id != ? AND synced_at > ?
		ORDER BY synced_at ASC`,
		user, excludeDevice, since)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListRecentEntries returns the limit most recently synced entries from
// other devices, newest first.
func (s *Store) ListRecentEntries(ctx context.Context, user, excludeDevice string, limit int) ([]*FileEntry, error) {
	var entries []*FileEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM file_entries
		WHERE user = ? AND device_id != ?
		ORDER BY synced_at DESC LIMIT ?`,
		user, excludeDevice, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	return entries, nil
}

func (s *Store) CountEntries(ctx context.Context, user string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM file_entries WHERE user = ?`, user)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (s *Store) CreateConflict(ctx context.Context, conflict *Conflict) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO conflicts (id, user, path, device_a, content_a, device_b, content_b, created_at)
		VALUES (:id, :user, :path, :device_a, :content_a, :device_b, :content_b, :created_at)`,
		conflict)
	if err != nil {
		return fmt.Errorf("create conflict %s: %w", conflict.Path, err)
	}
	return nil
}

func (s *Store) GetConflict(ctx context.Context, user, id string) (*Conflict, error) {
	var conflict Conflict
	err := s.db.GetContext(ctx, &conflict,
		`SELECT * FROM conflicts WHERE user = ? AND id = ?`, user, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conflict %s: %w", id, err)
	}
	return &conflict, nil
}

// ResolveConflict stamps a conflict resolved. Returns false when the
// conflict was already resolved (the stamp is one-shot).
func (s *Store) ResolveConflict(ctx context.Context, user, id, resolution string, resolvedAt int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conflicts SET resolved_at = ?, resolution = ?
		WHERE user = ? AND id = ? AND resolved_at IS NULL`,
		resolvedAt, resolution, user, id)
	if err != nil {
		return false, fmt.Errorf("resolve conflict %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve conflict %s: %w", id, err)
	}
	return affected > 0, nil
}

func (s *Store) ListOpenConflicts(ctx context.Context, user string) ([]*Conflict, error) {
	var conflicts []*Conflict
	err := s.db.SelectContext(ctx, &conflicts, `
		SELECT * FROM conflicts WHERE user = ? AND resolved_at IS NULL
		ORDER BY created_at ASC`, user)
	if err != nil {
		return nil, fmt.Errorf("list open conflicts: %w", err)
	}
	return conflicts, nil
}

// TouchLastSync records the receipt time of the user's latest push.
func (s *Store) TouchLastSync(ctx context.Context, user string, ts int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_sync (user, last_sync_at) VALUES (?, ?)
		ON CONFLICT(user) DO UPDATE SET last_sync_at = excluded.last_sync_at`,
		user, ts)
	if err != nil {
		return fmt.Errorf("touch last sync: %w", err)
	}
	return nil
}

func (s *Store) LastSync(ctx context.Context, user string) (int64, error) {
	var ts int64
	err := s.db.GetContext(ctx, &ts,
		`SELECT last_sync_at FROM user_sync WHERE user = ?`, user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get last sync: %w", err)
	}
	return ts, nil
}
