package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]Kind{
		"settings.json":                 KindConfig,
		"README.md":                     KindConfig,
		".env":                          KindConfig,
		"notes.txt":                     KindExcluded,
		"commands/deploy.md":            KindCommand,
		"commands/build.markdown":       KindCommand,
		"commands/run.sh":               KindExcluded,
		"todos/task-1.json":             KindLimited,
		"todos/log.jsonl":               KindLimited,
		"todos/scratch.txt":             KindExcluded,
		"sessions/abc/chat.jsonl":       KindSession,
		"sessions/abc/chat.summary.jsonl": KindExcluded,
		"sessions/abc/agent-run.jsonl":  KindExcluded,
		"sessions/abc/meta.json":        KindExcluded,
		"profiles/work.json":            KindConfig,
		"profiles/events.jsonl":         KindConfig,
		"profiles/readme.md":            KindExcluded,
		// extensions match case-insensitively, same as the merge classifier
		"SETTINGS.JSON":                 KindConfig,
		"commands/Deploy.MD":            KindCommand,
		"sessions/abc/chat.JSONL":       KindSession,
		"debug/trace.json":              KindExcluded,
		"history/old.json":              KindExcluded,
		"snapshots/snap.json":           KindExcluded,
		"cache/blob.json":               KindExcluded,
		"profiles/cache/blob.json":      KindExcluded,
	}

	for path, want := range cases {
		assert.Equal(t, want, Classify(path), "path %s", path)
	}
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"k":"v"}`), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func scanPaths(t *testing.T, root string) []string {
	t.Helper()
	scanner, err := NewScanner(root, nil)
	require.NoError(t, err)

	entries, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}

func TestScanBasics(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, "settings.json"), time.Hour)
	writeAged(t, filepath.Join(root, "ignore.txt"), time.Hour)
	writeAged(t, filepath.Join(root, "debug", "trace.json"), time.Hour)
	writeAged(t, filepath.Join(root, "profiles", "work.json"), time.Hour)

	paths := scanPaths(t, root)
	assert.ElementsMatch(t, []string{"settings.json", "profiles/work.json"}, paths)
}

func TestScanMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-yet")

	paths := scanPaths(t, root)
	assert.Empty(t, paths)
	assert.DirExists(t, root)
}

func TestLimitedDirRetention(t *testing.T) {
	root := t.TempDir()

	// 15 files with distinct mtimes; only the 10 newest survive
	for i := 0; i < 15; i++ {
		writeAged(t, filepath.Join(root, "todos", fmt.Sprintf("task-%02d.json", i)), time.Duration(i)*time.Minute)
	}

	paths := scanPaths(t, root)
	require.Len(t, paths, 10)
	for i := 0; i < 10; i++ {
		assert.Contains(t, paths, fmt.Sprintf("todos/task-%02d.json", i))
	}
	assert.NotContains(t, paths, "todos/task-14.json")
}

func TestSessionRetentionAcrossSubdirs(t *testing.T) {
	root := t.TempDir()

	// 12 sessions spread over 4 subdirs; the window is global, not per-subdir
	for i := 0; i < 12; i++ {
		dir := fmt.Sprintf("s%d", i%4)
		writeAged(t, filepath.Join(root, "sessions", dir, fmt.Sprintf("chat-%02d.jsonl", i)), time.Duration(i)*time.Minute)
	}

	paths := scanPaths(t, root)
	require.Len(t, paths, 10)
	assert.NotContains(t, paths, "sessions/s2/chat-10.jsonl")
	assert.NotContains(t, paths, "sessions/s3/chat-11.jsonl")
}

func TestSessionDerivedSkipped(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, "sessions", "abc", "chat.jsonl"), time.Hour)
	writeAged(t, filepath.Join(root, "sessions", "abc", "chat.summary.jsonl"), time.Minute)
	writeAged(t, filepath.Join(root, "sessions", "abc", "agent-scratch.jsonl"), time.Minute)

	paths := scanPaths(t, root)
	assert.Equal(t, []string{"sessions/abc/chat.jsonl"}, paths)
}

func TestIgnorePatterns(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, "settings.json"), time.Hour)
	writeAged(t, filepath.Join(root, "secret.json"), time.Hour)
	writeAged(t, filepath.Join(root, ".dotsync", "state.json"), time.Hour)

	scanner, err := NewScanner(root, []string{"secret.json"})
	require.NoError(t, err)

	entries, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "settings.json", entries[0].Path)
	assert.NotEmpty(t, entries[0].Hash)
	assert.Equal(t, `{"k":"v"}`, entries[0].Content)
}

func TestScanDeterministicHashes(t *testing.T) {
	root := t.TempDir()
	writeAged(t, filepath.Join(root, "settings.json"), time.Hour)

	scanner, err := NewScanner(root, nil)
	require.NoError(t, err)

	first, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	second, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Hash, second[0].Hash)
}
