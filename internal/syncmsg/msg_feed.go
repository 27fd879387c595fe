package syncmsg

// FeedEntry is the lightweight catalog view carried in a change-feed
// snapshot. It carries fingerprints only, never content: a client must
// confirm with a pull before writing anything to disk.
type FeedEntry struct {
	Path     string `json:"pth"`
	Hash     string `json:"hsh"`
	DeviceID string `json:"dev"`
	Version  int64  `json:"ver"`
	SyncedAt int64  `json:"syn"` // ms epoch
}

type FeedConflict struct {
	ID        string `json:"id"`
	Path      string `json:"pth"`
	DeviceA   string `json:"deva"`
	DeviceB   string `json:"devb"`
	CreatedAt int64  `json:"ts"` // ms epoch
}

type Feed struct {
	Entries   []FeedEntry    `json:"ent"`
	Conflicts []FeedConflict `json:"cfl,omitempty"`
}

func NewFeed(entries []FeedEntry, conflicts []FeedConflict) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFeed,
		Data: &Feed{
			Entries:   entries,
			Conflicts: conflicts,
		},
	}
}
