package syncmsg

import (
	"fmt"

	"github.com/dotsync/dotsync/internal/utils"
	"github.com/goccy/go-json"
)

const idSize = 3

// Message is the envelope for every frame on the events socket.
type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat"`
}

// UnmarshalJSON decodes the payload into its concrete type based on Type.
func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var temp tempMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Id = temp.Id
	m.Type = temp.Type

	switch m.Type {
	case MsgSystem:
		var sys System
		if err := json.Unmarshal(temp.Data, &sys); err != nil {
			return err
		}
		m.Data = sys
	case MsgError:
		var errMsg Error
		if err := json.Unmarshal(temp.Data, &errMsg); err != nil {
			return err
		}
		m.Data = errMsg
	case MsgFeed:
		var feed Feed
		if err := json.Unmarshal(temp.Data, &feed); err != nil {
			return err
		}
		m.Data = feed
	default:
		return fmt.Errorf("unknown message type: %d", m.Type)
	}

	return nil
}

func generateID() string {
	return utils.TokenHex(idSize)
}
