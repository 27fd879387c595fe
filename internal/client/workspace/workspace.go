// Package workspace owns the synced directory on disk: its lock file, its
// metadata dir, and path translation between absolute and catalog-relative
// form.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotsync/dotsync/internal/utils"
	"github.com/gofrs/flock"
)

const (
	metadataDir = ".dotsync"
	lockFile    = "dotsync.lock"
)

var ErrWorkspaceLocked = errors.New("workspace locked by another process")

type Workspace struct {
	Owner       string
	Root        string
	MetadataDir string

	flock *flock.Flock
}

func NewWorkspace(rootDir, user string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	lockFilePath := filepath.Join(root, metadataDir, lockFile)

	return &Workspace{
		Owner:       user,
		Root:        root,
		MetadataDir: filepath.Join(root, metadataDir),
		flock:       flock.New(lockFilePath),
	}, nil
}

// Lock takes the workspace lock so two daemons never sync the same tree.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.MetadataDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.MetadataDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// if this process hasn't locked the workspace, then don't delete the lock file
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

func (w *Workspace) Setup() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.Root, err)
	}

	if err := w.Lock(); err != nil {
		return err
	}

	slog.Info("workspace", "root", w.Root, "owner", w.Owner)
	return nil
}

// AbsPath returns the absolute path for a catalog-relative path.
func (w *Workspace) AbsPath(relPath string) string {
	return filepath.Join(w.Root, filepath.FromSlash(relPath))
}

// RelPath returns the catalog-relative form of an absolute path.
func (w *Workspace) RelPath(absPath string) (string, error) {
	relPath, err := filepath.Rel(w.Root, absPath)
	if err != nil {
		return "", err
	}
	return NormPath(relPath), nil
}

// Contains reports whether absPath sits inside the workspace root.
func (w *Workspace) Contains(absPath string) bool {
	rel, err := filepath.Rel(w.Root, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// NormPath cleans a path and converts it to slash-separated catalog form.
func NormPath(path string) string {
	path = filepath.Clean(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimLeft(path, "/")
	return path
}
