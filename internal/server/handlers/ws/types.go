package ws

import (
	"net/http"

	"github.com/dotsync/dotsync/internal/syncmsg"
)

type ClientInfo struct {
	User     string
	DeviceID string
	IPAddr   string
	Headers  http.Header
	Version  string
}

type ClientMessage struct {
	ConnID     string
	ClientInfo *ClientInfo
	Message    *syncmsg.Message
}
