package sync

import (
	"github.com/dotsync/dotsync/internal/merge"
	"github.com/dotsync/dotsync/internal/server/sync"
)

type PushRequest struct {
	Entries []*sync.PushEntry `json:"entries" binding:"required"`
}

type PushResponse struct {
	Results []*sync.PushResult `json:"results"`
}

type PullResponse struct {
	Entries []*sync.FileEntry `json:"entries"`
}

type ConflictsResponse struct {
	Conflicts []*sync.Conflict `json:"conflicts"`
}

type ResolveRequest struct {
	ConflictID string           `json:"conflictId" binding:"required"`
	Resolution merge.Resolution `json:"resolution" binding:"required"`
	Content    string           `json:"content,omitempty"` // manual resolution only
}

type ResolveResponse struct {
	Entry *sync.FileEntry `json:"entry"`
}

type DeleteRequest struct {
	Path string `json:"path" binding:"required"`
}
