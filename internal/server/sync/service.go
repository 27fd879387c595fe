// Package sync implements the server side of the synchronization protocol:
// pushed inventories are reconciled against the stored catalog, divergent
// writes become conflict records, and pulls serve the catalog entries a
// device hasn't seen.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dotsync/dotsync/internal/merge"
	"github.com/dotsync/dotsync/internal/server/quota"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/dotsync/dotsync/internal/utils"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const changeFeedSize = 50

var (
	ErrConflictNotFound  = errors.New("sync: conflict not found")
	ErrConflictResolved  = errors.New("sync: conflict already resolved")
	ErrInvalidResolution = errors.New("sync: invalid resolution")
)

// ChangeNotifier is told after a push or resolution changed a user's
// catalog, so connected devices can receive a fresh change-feed snapshot.
type ChangeNotifier func(user, sourceDevice string)

type SyncService struct {
	store  *Store
	quota  *quota.QuotaService
	locks  *pathLocker
	notify ChangeNotifier
}

func NewSyncService(store *Store, quotaSvc *quota.QuotaService) *SyncService {
	return &SyncService{
		store: store,
		quota: quotaSvc,
		locks: newPathLocker(),
	}
}

// SetChangeNotifier registers the callback invoked after catalog mutations.
// Must be called before the service starts handling requests.
func (s *SyncService) SetChangeNotifier(notify ChangeNotifier) {
	s.notify = notify
}

// Push reconciles a batch of entries against the catalog. Entries are
// processed independently; the only whole-batch failure is rate limiting.
func (s *SyncService) Push(ctx context.Context, user, deviceID string, entries []*PushEntry) ([]*PushResult, error) {
	if err := s.quota.ConsumeToken(ctx, user); err != nil {
		return nil, err
	}

	tstart := time.Now()
	results := make([]*PushResult, 0, len(entries))
	changed := false

	for _, entry := range entries {
		result := s.pushOne(ctx, user, deviceID, entry)
		if result.Status == StatusSuccess || result.Status == StatusConflict {
			changed = true
		}
		results = append(results, result)
	}

	// the last-sync stamp moves once per push, whatever the per-entry outcomes
	if err := s.store.TouchLastSync(ctx, user, time.Now().UnixMilli()); err != nil {
		slog.Error("touch last sync", "user", user, "error", err)
	}

	slog.Info("push", "user", user, "device", deviceID,
		"entries", len(entries), "took", time.Since(tstart))

	if changed && s.notify != nil {
		s.notify(user, deviceID)
	}

	return results, nil
}

// pushOne runs the lookup-decide-write sequence for a single path under the
// per-path lock (spec'd serialization point: without it two concurrent
// divergent pushes could both insert and silently drop a conflict).
func (s *SyncService) pushOne(ctx context.Context, user, deviceID string, entry *PushEntry) *PushResult {
	unlock := s.locks.Lock(user + "\x00" + entry.Path)
	defer unlock()

	existing, err := s.store.GetEntry(ctx, user, entry.Path)
	if err != nil {
		return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
	}

	now := time.Now().UnixMilli()

	// new path
	if existing == nil {
		if err := s.quota.Charge(ctx, user, int64(len(entry.Content))); err != nil {
			return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
		}
		record := &FileEntry{
			User:         user,
			Path:         entry.Path,
			Content:      entry.Content,
			Hash:         entry.Hash,
			LastModified: entry.LastModified,
			DeviceID:     deviceID,
			Version:      1,
			SyncedAt:     now,
		}
		if err := s.store.InsertEntry(ctx, record); err != nil {
			return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
		}
		return &PushResult{Path: entry.Path, Status: StatusSuccess, Version: 1}
	}

	// unchanged content, idempotent no-op
	if existing.Hash == entry.Hash {
		return &PushResult{Path: entry.Path, Status: StatusSuccess, Version: existing.Version}
	}

	// same writer moved forward
	if existing.DeviceID == deviceID {
		delta := int64(len(entry.Content)) - int64(len(existing.Content))
		if err := s.quota.Charge(ctx, user, delta); err != nil {
			return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
		}
		existing.Content = entry.Content
		existing.Hash = entry.Hash
		existing.LastModified = entry.LastModified
		existing.DeviceID = deviceID
		existing.Version++
		existing.SyncedAt = now
		if err := s.store.UpdateEntry(ctx, existing); err != nil {
			return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
		}
		return &PushResult{Path: entry.Path, Status: StatusSuccess, Version: existing.Version}
	}

	// different writer, diverged content: record the conflict, leave the
	// catalog entry untouched
	conflict := &Conflict{
		ID:        uuid.New().String(),
		User:      user,
		Path:      entry.Path,
		DeviceA:   existing.DeviceID,
		ContentA:  existing.Content,
		DeviceB:   deviceID,
		ContentB:  entry.Content,
		CreatedAt: now,
	}
	if err := s.store.CreateConflict(ctx, conflict); err != nil {
		return &PushResult{Path: entry.Path, Status: StatusError, Message: err.Error()}
	}

	slog.Info("conflict detected", "user", user, "path", entry.Path,
		"deviceA", conflict.DeviceA, "deviceB", conflict.DeviceB)

	return &PushResult{Path: entry.Path, Status: StatusConflict, ConflictID: conflict.ID}
}

// Pull returns every catalog entry not last written by deviceID, received
// after since. Own-device entries are always excluded so a device never
// re-downloads what it just uploaded.
func (s *SyncService) Pull(ctx context.Context, user, deviceID string, since int64) ([]*FileEntry, error) {
	return s.store.ListEntriesSince(ctx, user, deviceID, since)
}

// ChangeFeed returns the most recent entries from other devices plus all
// unresolved conflicts. It trades completeness for latency; clients confirm
// with a Pull before writing anything.
func (s *SyncService) ChangeFeed(ctx context.Context, user, deviceID string) (*syncmsg.Feed, error) {
	entries, err := s.store.ListRecentEntries(ctx, user, deviceID, changeFeedSize)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.store.ListOpenConflicts(ctx, user)
	if err != nil {
		return nil, err
	}

	feed := &syncmsg.Feed{
		Entries:   make([]syncmsg.FeedEntry, 0, len(entries)),
		Conflicts: make([]syncmsg.FeedConflict, 0, len(conflicts)),
	}
	for _, e := range entries {
		feed.Entries = append(feed.Entries, syncmsg.FeedEntry{
			Path:     e.Path,
			Hash:     e.Hash,
			DeviceID: e.DeviceID,
			Version:  e.Version,
			SyncedAt: e.SyncedAt,
		})
	}
	for _, c := range conflicts {
		feed.Conflicts = append(feed.Conflicts, syncmsg.FeedConflict{
			ID:        c.ID,
			Path:      c.Path,
			DeviceA:   c.DeviceA,
			DeviceB:   c.DeviceB,
			CreatedAt: c.CreatedAt,
		})
	}
	return feed, nil
}

// Conflicts lists the user's unresolved conflicts.
func (s *SyncService) Conflicts(ctx context.Context, user string) ([]*Conflict, error) {
	return s.store.ListOpenConflicts(ctx, user)
}

// Resolve closes a conflict: the final content is computed per the chosen
// strategy, written as the next catalog version, and the conflict is stamped
// resolved. Resolution is one-shot and non-retractable.
func (s *SyncService) Resolve(ctx context.Context, user, deviceID, conflictID string, resolution merge.Resolution, manualContent string) (*FileEntry, error) {
	if !merge.ValidResolution(resolution) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	conflict, err := s.store.GetConflict(ctx, user, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict == nil {
		return nil, ErrConflictNotFound
	}
	if conflict.Resolved() {
		return nil, ErrConflictResolved
	}

	finalContent, err := merge.Resolve(&merge.Conflict{
		Path:     conflict.Path,
		DeviceA:  conflict.DeviceA,
		ContentA: conflict.ContentA,
		DeviceB:  conflict.DeviceB,
		ContentB: conflict.ContentB,
	}, resolution, deviceID, manualContent)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(user + "\x00" + conflict.Path)
	defer unlock()

	now := time.Now().UnixMilli()
	entry, err := s.store.GetEntry(ctx, user, conflict.Path)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		// file was deleted meanwhile; the resolution re-creates it
		if err := s.quota.Charge(ctx, user, int64(len(finalContent))); err != nil {
			return nil, err
		}
		entry = &FileEntry{
			User:         user,
			Path:         conflict.Path,
			Content:      finalContent,
			Hash:         utils.ContentHash([]byte(finalContent)),
			LastModified: now,
			DeviceID:     deviceID,
			Version:      1,
			SyncedAt:     now,
		}
		if err := s.store.InsertEntry(ctx, entry); err != nil {
			return nil, err
		}
	} else {
		delta := int64(len(finalContent)) - int64(len(entry.Content))
		if err := s.quota.Charge(ctx, user, delta); err != nil {
			return nil, err
		}
		entry.Content = finalContent
		entry.Hash = utils.ContentHash([]byte(finalContent))
		entry.LastModified = now
		entry.DeviceID = deviceID
		entry.Version++
		entry.SyncedAt = now
		if err := s.store.UpdateEntry(ctx, entry); err != nil {
			return nil, err
		}
	}

	stamped, err := s.store.ResolveConflict(ctx, user, conflictID, string(resolution), now)
	if err != nil {
		return nil, err
	}
	if !stamped {
		return nil, ErrConflictResolved
	}

	slog.Info("conflict resolved", "user", user, "path", conflict.Path,
		"resolution", resolution, "device", deviceID)

	if s.notify != nil {
		s.notify(user, deviceID)
	}

	return entry, nil
}

// DeleteEntry removes a path from the catalog and releases its bytes.
func (s *SyncService) DeleteEntry(ctx context.Context, user, path string) error {
	unlock := s.locks.Lock(user + "\x00" + path)
	defer unlock()

	entry, err := s.store.GetEntry(ctx, user, path)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}

	if err := s.store.DeleteEntry(ctx, user, path); err != nil {
		return err
	}
	return s.quota.Release(ctx, user, int64(len(entry.Content)))
}

// UserStatus summarizes a user's catalog for the status endpoint.
type UserStatus struct {
	Entries      int64  `json:"entries"`
	StorageUsed  int64  `json:"storageUsed"`
	StorageLimit int64  `json:"storageLimit"`
	LastSyncAt   int64  `json:"lastSyncAt"`
	StorageHuman string `json:"storageHuman"`
}

func (s *SyncService) Status(ctx context.Context, user string) (*UserStatus, error) {
	count, err := s.store.CountEntries(ctx, user)
	if err != nil {
		return nil, err
	}
	used, err := s.quota.Used(ctx, user)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.store.LastSync(ctx, user)
	if err != nil {
		return nil, err
	}
	return &UserStatus{
		Entries:      count,
		StorageUsed:  used,
		StorageLimit: s.quota.Ceiling(),
		LastSyncAt:   lastSync,
		StorageHuman: humanize.Bytes(uint64(used)),
	}, nil
}
