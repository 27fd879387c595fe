package syncmsg

type System struct {
	SystemVersion string `json:"ver"`
}

func NewSystem(version string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgSystem,
		Data: &System{
			SystemVersion: version,
		},
	}
}
