package scheduler

import (
	"context"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dotsync/dotsync/internal/syncmsg"
)

// ConflictFunc reports a conflict surfaced by a feed snapshot.
type ConflictFunc func(conflict syncmsg.FeedConflict)

// Subscription consumes feed snapshots from the events socket. Novel
// fingerprints trigger a pull-only sync; conflicts go to the callback. The
// seen set is owned by the consumer goroutine alone and is replaced by each
// snapshot's fingerprints, keeping it bounded by the snapshot size.
type Subscription struct {
	messages   <-chan *syncmsg.Message
	seen       mapset.Set[string]
	onNovel    func()
	onConflict ConflictFunc
}

func NewSubscription(messages <-chan *syncmsg.Message, onNovel func(), onConflict ConflictFunc) *Subscription {
	return &Subscription{
		messages:   messages,
		seen:       mapset.NewThreadUnsafeSet[string](),
		onNovel:    onNovel,
		onConflict: onConflict,
	}
}

// Run drains the message stream until ctx is cancelled.
func (s *Subscription) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-s.messages:
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

func (s *Subscription) handle(msg *syncmsg.Message) {
	switch data := msg.Data.(type) {
	case syncmsg.Feed:
		s.handleFeed(&data)
	case *syncmsg.Feed:
		s.handleFeed(data)
	case syncmsg.System:
		slog.Info("server hello", "version", data.SystemVersion)
	case syncmsg.Error:
		slog.Warn("server error", "code", data.Code, "path", data.Path, "message", data.Message)
	default:
		slog.Debug("unhandled message", "msgType", msg.Type, "msgId", msg.Id)
	}
}

func (s *Subscription) handleFeed(feed *syncmsg.Feed) {
	novel := false
	next := mapset.NewThreadUnsafeSet[string]()
	for _, entry := range feed.Entries {
		next.Add(entry.Hash)
		if !s.seen.Contains(entry.Hash) {
			novel = true
		}
	}

	// the set is rebuilt from every snapshot, so it never outgrows one.
	// Feeds carry only the newest entries; a hash absent from the latest
	// snapshot cannot reappear in a later one.
	s.seen = next

	if novel && s.onNovel != nil {
		s.onNovel()
	}

	// conflicts are reported regardless of sync activity
	for _, conflict := range feed.Conflicts {
		if s.onConflict != nil {
			s.onConflict(conflict)
		}
	}
}

// MarkSeen records fingerprints the client already holds, so the first
// snapshot after connect doesn't trigger a redundant pull. Must be called
// before Run starts; the seen set is not synchronized.
func (s *Subscription) MarkSeen(hashes ...string) {
	for _, h := range hashes {
		s.seen.Add(h)
	}
}
