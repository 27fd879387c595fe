package merge

import (
	"path"
	"strings"
)

// FileKind drives the keep_both merge strategy. The set is closed on purpose:
// every syncable file falls into exactly one of these buckets and each bucket
// has one merge function.
type FileKind int

const (
	// KindStructured is a JSON key-value document (settings, todo state).
	KindStructured FileKind = iota
	// KindEnv is a dotenv-style KEY=VALUE file.
	KindEnv
	// KindRecords is a line-delimited file where each line is an
	// independent JSON record (session transcripts).
	KindRecords
	// KindText is anything else; merged with conflict banners.
	KindText
)

func (k FileKind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindEnv:
		return "env"
	case KindRecords:
		return "records"
	default:
		return "text"
	}
}

// KindOf classifies a catalog path by its extension.
func KindOf(filePath string) FileKind {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".json":
		return KindStructured
	case ".jsonl":
		return KindRecords
	case ".env":
		return KindEnv
	}
	return KindText
}
