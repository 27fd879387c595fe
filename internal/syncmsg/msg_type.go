package syncmsg

import "fmt"

type MessageType uint16

const (
	MsgSystem MessageType = iota
	MsgError
	MsgFeed
)

func (t MessageType) String() string {
	switch t {
	case MsgSystem:
		return "SYSTEM"
	case MsgError:
		return "ERROR"
	case MsgFeed:
		return "FEED"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}
