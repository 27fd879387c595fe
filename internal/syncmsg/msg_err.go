package syncmsg

type Error struct {
	Code    int    `json:"cod"`
	Path    string `json:"pth,omitempty"`
	Message string `json:"msg"`
}

func NewError(code int, path string, message string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgError,
		Data: &Error{
			Code:    code,
			Path:    path,
			Message: message,
		},
	}
}
