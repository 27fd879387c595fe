// Package client is the dotsync daemon: it watches the sync root, keeps an
// inventory of eligible files, and drives push/pull cycles against the
// server through the scheduler.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dotsync/dotsync/internal/client/config"
	"github.com/dotsync/dotsync/internal/client/inventory"
	"github.com/dotsync/dotsync/internal/client/scheduler"
	"github.com/dotsync/dotsync/internal/client/workspace"
	"github.com/dotsync/dotsync/internal/sdk"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/dotsync/dotsync/internal/utils"
)

// retry fallback when the server rate-limits without a usable delay
const defaultRetryAfter = 30 * time.Second

// ConflictFunc is told about every conflict the daemon sees, from push
// results and feed snapshots alike.
type ConflictFunc func(path, conflictID string)

type Client struct {
	config    *config.Config
	workspace *workspace.Workspace
	sdk       *sdk.SyncSDK
	scanner   *inventory.Scanner
	watcher   *scheduler.Watcher
	sched     *scheduler.Scheduler

	onConflict ConflictFunc

	// serializes full syncs with reactive pull-only syncs
	muSync sync.Mutex

	// in-process pull cursor, reset to zero every start
	lastSyncTime int64

	// fingerprints from the latest sync, seeds the subscription seen set
	bootstrapHashes []string
}

func New(cfg *config.Config) (*Client, error) {
	ws, err := workspace.NewWorkspace(cfg.DataDir, cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	syncSDK, err := sdk.New(cfg.ServerURL, utils.HWID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	scanner, err := inventory.NewScanner(ws.Root, cfg.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	c := &Client{
		config:    cfg,
		workspace: ws,
		sdk:       syncSDK,
		scanner:   scanner,
		watcher:   scheduler.NewWatcher(ws.Root),
	}
	c.sched = scheduler.New(scheduler.Config{}, c.fullSync)

	return c, nil
}

// SetConflictHandler registers the conflict callback. Must be called before
// Start.
func (c *Client) SetConflictHandler(fn ConflictFunc) {
	c.onConflict = fn
}

func (c *Client) Start(ctx context.Context) error {
	slog.Info("dotsync client start", "datadir", c.config.DataDir, "email", c.config.Email, "server", c.config.ServerURL, "device", utils.HWID)

	if err := c.workspace.Setup(); err != nil {
		return fmt.Errorf("failed to setup workspace: %w", err)
	}
	defer c.workspace.Unlock()

	c.sdk.Login(c.config.Email, c.config.AccessToken)

	// first sync runs before the watcher so startup writes don't loop back
	slog.Info("running initial sync")
	if err := c.fullSync(ctx); err != nil {
		slog.Error("initial sync", "error", err)
	}

	sub := scheduler.NewSubscription(c.sdk.Events.Get(), c.triggerPull, c.reportFeedConflict)
	sub.MarkSeen(c.bootstrapHashes...)

	if err := c.sdk.Events.Connect(ctx); err != nil {
		// the events socket reconnects on its own; syncing still works without it
		slog.Warn("events connect", "error", err)
	}
	go sub.Run(ctx)

	if err := c.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	go c.consumeWatcher(ctx)
	go c.sched.Run(ctx)

	<-ctx.Done()
	slog.Info("received interrupt signal, stopping client")

	c.watcher.Stop()
	c.sdk.Close()
	slog.Info("dotsync client stop")
	return nil
}

// ForceSync requests an immediate full sync.
func (c *Client) ForceSync() {
	c.sched.ForceSync()
}

func (c *Client) consumeWatcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-c.watcher.Events():
			if !ok {
				return
			}
			slog.Debug("local change", "path", path)
			c.sched.OnChange()
		}
	}
}

// fullSync is one complete round-trip: pull what other devices wrote, then
// re-scan and push. The scan happens after the pull so a stale local read
// costs an extra cycle, never corruption.
func (c *Client) fullSync(ctx context.Context) error {
	c.muSync.Lock()
	defer c.muSync.Unlock()

	tstart := time.Now()

	pulled, err := c.pull(ctx)
	if err != nil {
		return err
	}

	entries, err := c.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("inventory scan: %w", err)
	}

	hashes := make([]string, 0, len(entries)+len(pulled))
	hashes = append(hashes, pulled...)
	for _, e := range entries {
		hashes = append(hashes, e.Hash)
	}
	c.bootstrapHashes = hashes

	if len(entries) > 0 {
		if err := c.push(ctx, entries); err != nil {
			return err
		}
	}

	slog.Info("sync complete", "pulled", len(pulled), "scanned", len(entries), "took", time.Since(tstart))
	return nil
}

// pullSync is the reactive path: download only, no push. Triggered by feed
// snapshots carrying novel fingerprints.
func (c *Client) pullSync(ctx context.Context) error {
	c.muSync.Lock()
	defer c.muSync.Unlock()

	pulled, err := c.pull(ctx)
	if err != nil {
		return err
	}
	slog.Info("reactive pull complete", "pulled", len(pulled))
	return nil
}

func (c *Client) triggerPull() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := c.pullSync(ctx); err != nil {
			slog.Error("reactive pull", "error", err)
		}
	}()
}

func (c *Client) reportFeedConflict(conflict syncmsg.FeedConflict) {
	slog.Warn("conflict pending", "path", conflict.Path, "conflictId", conflict.ID)
	if c.onConflict != nil {
		c.onConflict(conflict.Path, conflict.ID)
	}
}

// pull downloads entries from other devices past the cursor and applies
// them to disk. Returns the applied content fingerprints.
func (c *Client) pull(ctx context.Context) ([]string, error) {
	resp, err := c.sdk.Sync.Pull(ctx, c.lastSyncTime)
	if err != nil {
		return nil, c.mapSyncError(err)
	}

	return c.applyPulled(resp.Entries), nil
}

// applyPulled writes entries to disk in synced_at order. The cursor only
// advances past entries that landed; it freezes at the first failed write,
// so the failed entry is pulled again next round.
func (c *Client) applyPulled(entries []*sdk.FileEntry) []string {
	applied := make([]string, 0, len(entries))
	advance := true

	for _, entry := range entries {
		if err := c.applyEntry(entry); err != nil {
			slog.Warn("apply entry", "path", entry.Path, "error", err)
			advance = false
			continue
		}
		applied = append(applied, entry.Hash)

		if advance && entry.SyncedAt > c.lastSyncTime {
			c.lastSyncTime = entry.SyncedAt
		}
	}

	return applied
}

func (c *Client) applyEntry(entry *sdk.FileEntry) error {
	if !validRelPath(entry.Path) {
		return fmt.Errorf("invalid path %q", entry.Path)
	}

	absPath := c.workspace.AbsPath(entry.Path)
	if !c.workspace.Contains(absPath) {
		return fmt.Errorf("path escapes workspace: %q", entry.Path)
	}

	// suppress the watcher event for our own write
	c.watcher.IgnoreOnce(absPath)

	if err := utils.WriteFileVerified(absPath, []byte(entry.Content), entry.Hash); err != nil {
		return err
	}

	// preserve the source mtime so retention windows stay honest
	mtime := time.UnixMilli(entry.LastModified)
	if err := os.Chtimes(absPath, mtime, mtime); err != nil {
		slog.Debug("chtimes", "path", entry.Path, "error", err)
	}

	slog.Debug("applied remote entry", "path", entry.Path, "version", entry.Version, "device", entry.DeviceID)
	return nil
}

func (c *Client) push(ctx context.Context, entries []*inventory.Entry) error {
	batch := make([]*sdk.PushEntry, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, &sdk.PushEntry{
			Path:         e.Path,
			Content:      e.Content,
			Hash:         e.Hash,
			LastModified: e.LastModified,
		})
	}

	resp, err := c.sdk.Sync.Push(ctx, batch)
	if err != nil {
		return c.mapSyncError(err)
	}

	for _, result := range resp.Results {
		switch result.Status {
		case "conflict":
			slog.Warn("push conflict", "path", result.Path, "conflictId", result.ConflictID)
			if c.onConflict != nil {
				c.onConflict(result.Path, result.ConflictID)
			}
		case "error":
			slog.Warn("push rejected", "path", result.Path, "reason", result.Message)
		}
	}

	return nil
}

// mapSyncError converts a server rate limit into the scheduler's retry
// signal, honoring the server's Retry-After when it sent one; everything
// else passes through.
func (c *Client) mapSyncError(err error) error {
	var apiErr *sdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == sdk.CodeRateLimited {
		retryAfter := apiErr.RetryAfter
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		return &scheduler.RetryAfterError{RetryAfter: retryAfter}
	}
	return err
}

func validRelPath(path string) bool {
	if path == "" || strings.HasPrefix(path, "/") {
		return false
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." || part == "" {
			return false
		}
	}
	return true
}
