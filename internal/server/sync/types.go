package sync

import "database/sql"

// FileEntry is one current catalog record. There is at most one per
// (user, path); history is not kept, only a monotonic version counter.
type FileEntry struct {
	User         string `db:"user" json:"-"`
	Path         string `db:"path" json:"path"`
	Content      string `db:"content" json:"content"`
	Hash         string `db:"content_hash" json:"hash"`
	LastModified int64  `db:"last_modified" json:"lastModified"` // source mtime, ms epoch
	DeviceID     string `db:"device_id" json:"deviceId"`
	Version      int64  `db:"version" json:"version"`
	SyncedAt     int64  `db:"synced_at" json:"syncedAt"` // server receipt, ms epoch
}

// Conflict records a divergence between two writers of the same path. Side A
// is the catalog entry at detection time, side B the incoming push. Once
// resolved it is terminal and never mutated again.
type Conflict struct {
	ID         string         `db:"id" json:"id"`
	User       string         `db:"user" json:"-"`
	Path       string         `db:"path" json:"path"`
	DeviceA    string         `db:"device_a" json:"deviceA"`
	ContentA   string         `db:"content_a" json:"contentA"`
	DeviceB    string         `db:"device_b" json:"deviceB"`
	ContentB   string         `db:"content_b" json:"contentB"`
	CreatedAt  int64          `db:"created_at" json:"createdAt"`
	ResolvedAt sql.NullInt64  `db:"resolved_at" json:"-"`
	Resolution sql.NullString `db:"resolution" json:"-"`
}

func (c *Conflict) Resolved() bool {
	return c.ResolvedAt.Valid
}

// PushEntry is one file as a device sees it. Server-side fields (version,
// device, receipt time) are assigned during reconciliation.
type PushEntry struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
}

type EntryStatus string

const (
	StatusSuccess  EntryStatus = "success"
	StatusConflict EntryStatus = "conflict"
	StatusError    EntryStatus = "error"
)

// PushResult is the per-path outcome of a push. The batch never fails as a
// whole; callers inspect these to decide what needs retry or resolution.
type PushResult struct {
	Path       string      `json:"path"`
	Status     EntryStatus `json:"status"`
	Version    int64       `json:"version,omitempty"`
	ConflictID string      `json:"conflictId,omitempty"`
	Message    string      `json:"message,omitempty"`
}
