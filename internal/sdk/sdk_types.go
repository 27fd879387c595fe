package sdk

import (
	"fmt"
	"runtime"

	"github.com/dotsync/dotsync/internal/merge"
	"github.com/dotsync/dotsync/internal/version"
)

const (
	HeaderVersion  = "X-Dotsync-Version"
	HeaderDeviceId = "X-Dotsync-Device"
)

var UserAgent = fmt.Sprintf("Dotsync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// PushEntry is one file as the device sees it.
type PushEntry struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
}

type PushRequest struct {
	Entries []*PushEntry `json:"entries"`
}

type PushResult struct {
	Path       string `json:"path"`
	Status     string `json:"status"` // success | conflict | error
	Version    int64  `json:"version,omitempty"`
	ConflictID string `json:"conflictId,omitempty"`
	Message    string `json:"message,omitempty"`
}

type PushResponse struct {
	Results []*PushResult `json:"results"`
}

// FileEntry is a catalog record as served by a pull.
type FileEntry struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
	DeviceID     string `json:"deviceId"`
	Version      int64  `json:"version"`
	SyncedAt     int64  `json:"syncedAt"`
}

type PullResponse struct {
	Entries []*FileEntry `json:"entries"`
}

type Conflict struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	DeviceA   string `json:"deviceA"`
	ContentA  string `json:"contentA"`
	DeviceB   string `json:"deviceB"`
	ContentB  string `json:"contentB"`
	CreatedAt int64  `json:"createdAt"`
}

type ConflictsResponse struct {
	Conflicts []*Conflict `json:"conflicts"`
}

type ResolveRequest struct {
	ConflictID string           `json:"conflictId"`
	Resolution merge.Resolution `json:"resolution"`
	Content    string           `json:"content,omitempty"`
}

type ResolveResponse struct {
	Entry *FileEntry `json:"entry"`
}

type DeleteRequest struct {
	Path string `json:"path"`
}

type StatusResponse struct {
	Entries      int64  `json:"entries"`
	StorageUsed  int64  `json:"storageUsed"`
	StorageLimit int64  `json:"storageLimit"`
	LastSyncAt   int64  `json:"lastSyncAt"`
	StorageHuman string `json:"storageHuman"`
}
