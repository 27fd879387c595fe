// Package inventory scans the sync root and turns it into the flat list of
// entries a push carries: eligible files only, retention policies applied,
// content fingerprinted.
package inventory

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dotsync/dotsync/internal/utils"
	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

const (
	// newest files kept per limited directory
	limitedKeep = 10
	// newest primary session files kept across all session subdirs
	sessionKeep = 10

	hashCacheSize = 2048
)

// Entry is one scanned file, shaped for a push. Server-side fields are
// assigned during reconciliation.
type Entry struct {
	Path         string // slash-normalized, relative to root
	Content      string
	Hash         string
	LastModified int64 // ms epoch
	Kind         Kind
}

type cachedFile struct {
	hash    string
	content string
}

type Scanner struct {
	root   string
	ignore []string // doublestar globs, relative form
	cache  *lru.Cache[string, cachedFile]
}

func NewScanner(root string, ignorePatterns []string) (*Scanner, error) {
	cache, err := lru.New[string, cachedFile](hashCacheSize)
	if err != nil {
		return nil, err
	}

	// the metadata dir never syncs
	ignore := append([]string{".dotsync/**"}, ignorePatterns...)

	return &Scanner{
		root:   root,
		ignore: ignore,
		cache:  cache,
	}, nil
}

type candidate struct {
	relPath string
	absPath string
	size    int64
	modTime time.Time
	kind    Kind
}

// Scan walks the root and returns all eligible entries with retention
// applied. A missing root is treated as empty and lazily created.
func (s *Scanner) Scan(ctx context.Context) ([]*Entry, error) {
	if !utils.DirExists(s.root) {
		if err := utils.EnsureDir(s.root); err != nil {
			return nil, err
		}
		return nil, nil
	}

	candidates, err := s.collect()
	if err != nil {
		return nil, err
	}

	selected := applyRetention(candidates)

	entries, err := s.loadAll(ctx, selected)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	var total int64
	for _, e := range entries {
		total += int64(len(e.Content))
	}
	slog.Debug("inventory scan", "files", len(entries), "size", humanize.Bytes(uint64(total)))

	return entries, nil
}

func (s *Scanner) collect() ([]*candidate, error) {
	var candidates []*candidate

	err := filepath.WalkDir(s.root, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("scan skip", "path", absPath, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, rerr := filepath.Rel(s.root, absPath)
		if rerr != nil || rel == "." {
			return nil
		}
		relPath := filepath.ToSlash(rel)

		if d.IsDir() {
			if s.ignored(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignored(relPath) {
			return nil
		}

		kind := Classify(relPath)
		if kind == KindExcluded {
			return nil
		}

		info, ierr := d.Info()
		if ierr != nil {
			slog.Warn("scan stat", "path", relPath, "error", ierr)
			return nil
		}

		candidates = append(candidates, &candidate{
			relPath: relPath,
			absPath: absPath,
			size:    info.Size(),
			modTime: info.ModTime(),
			kind:    kind,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return candidates, nil
}

func (s *Scanner) ignored(relPath string) bool {
	for _, pattern := range s.ignore {
		if ok, _ := doublestar.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, strings.TrimSuffix(relPath, "/")); ok {
			return true
		}
	}
	return false
}

// applyRetention drops candidates outside their category's recency window.
// Limited directories keep the newest files per directory; session files
// keep the newest across all session subdirectories combined.
func applyRetention(candidates []*candidate) []*candidate {
	keep := make([]*candidate, 0, len(candidates))
	limited := make(map[string][]*candidate)
	var sessions []*candidate

	for _, c := range candidates {
		switch c.kind {
		case KindLimited:
			dir := filepath.ToSlash(filepath.Dir(c.relPath))
			limited[dir] = append(limited[dir], c)
		case KindSession:
			sessions = append(sessions, c)
		default:
			keep = append(keep, c)
		}
	}

	for _, group := range limited {
		keep = append(keep, newestN(group, limitedKeep)...)
	}
	keep = append(keep, newestN(sessions, sessionKeep)...)

	return keep
}

func newestN(group []*candidate, n int) []*candidate {
	sort.Slice(group, func(i, j int) bool { return group[i].modTime.After(group[j].modTime) })
	if len(group) > n {
		group = group[:n]
	}
	return group
}

// loadAll reads and fingerprints the selected files with bounded
// parallelism. Unreadable files are skipped with a warning.
func (s *Scanner) loadAll(ctx context.Context, selected []*candidate) ([]*Entry, error) {
	entries := make([]*Entry, len(selected))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, c := range selected {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			entry, err := s.load(c)
			if err != nil {
				slog.Warn("scan read", "path", c.relPath, "error", err)
				return nil
			}
			entries[i] = entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := entries[:0]
	for _, e := range entries {
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Scanner) load(c *candidate) (*Entry, error) {
	key := c.relPath + "|" + strconv.FormatInt(c.size, 10) + "|" + strconv.FormatInt(c.modTime.UnixNano(), 10)

	cached, ok := s.cache.Get(key)
	if !ok {
		data, err := os.ReadFile(c.absPath)
		if err != nil {
			return nil, err
		}
		cached = cachedFile{
			hash:    utils.ContentHash(data),
			content: string(data),
		}
		s.cache.Add(key, cached)
	}

	return &Entry{
		Path:         c.relPath,
		Content:      cached.content,
		Hash:         cached.hash,
		LastModified: c.modTime.UnixMilli(),
		Kind:         c.kind,
	}, nil
}
