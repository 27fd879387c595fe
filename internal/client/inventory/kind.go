package inventory

import (
	"path"
	"strings"
)

// Kind is the retention category of a path. Classification is a closed set
// so the policy stays auditable in one place.
type Kind int

const (
	// KindExcluded files never sync.
	KindExcluded Kind = iota
	// KindConfig files are always retained: root-level configs and
	// structured files in allow-listed subdirectories.
	KindConfig
	// KindCommand files are markdown command definitions.
	KindCommand
	// KindLimited files live in a noisy scratch directory; only the newest
	// few are visible to sync.
	KindLimited
	// KindSession files are primary per-session records, recency-limited
	// across all session subdirectories combined.
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindCommand:
		return "command"
	case KindLimited:
		return "limited"
	case KindSession:
		return "session"
	default:
		return "excluded"
	}
}

const (
	commandsDir = "commands"
	limitedDir  = "todos"
	sessionsDir = "sessions"

	derivedSuffix = ".summary.jsonl"
	derivedPrefix = "agent-"
)

// directories whose contents never sync
var excludedDirs = map[string]bool{
	"debug":     true,
	"history":   true,
	"snapshots": true,
	"cache":     true,
}

var (
	rootExts   = map[string]bool{".json": true, ".md": true, ".env": true}
	cmdExts    = map[string]bool{".md": true, ".markdown": true}
	structExts = map[string]bool{".json": true, ".jsonl": true}
)

// Classify maps a slash-normalized relative path to its retention category.
// Extensions match case-insensitively, same as the merge-side classifier.
func Classify(relPath string) Kind {
	parts := strings.Split(relPath, "/")
	name := parts[len(parts)-1]
	ext := strings.ToLower(path.Ext(name))

	for _, dir := range parts[:len(parts)-1] {
		if excludedDirs[dir] {
			return KindExcluded
		}
	}

	// root-level file
	if len(parts) == 1 {
		if rootExts[ext] {
			return KindConfig
		}
		return KindExcluded
	}

	switch parts[0] {
	case commandsDir:
		if cmdExts[ext] {
			return KindCommand
		}
		return KindExcluded

	case limitedDir:
		if structExts[ext] {
			return KindLimited
		}
		return KindExcluded

	case sessionsDir:
		if isDerivedSessionFile(name) {
			return KindExcluded
		}
		if ext == ".jsonl" {
			return KindSession
		}
		return KindExcluded

	default:
		if structExts[ext] {
			return KindConfig
		}
		return KindExcluded
	}
}

// isDerivedSessionFile reports whether the name marks a secondary artifact
// generated from a primary session file.
func isDerivedSessionFile(name string) bool {
	return strings.HasSuffix(name, derivedSuffix) || strings.HasPrefix(name, derivedPrefix)
}
