package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/dotsync/dotsync/internal/server/handlers/api"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/dotsync/dotsync/internal/version"
	"github.com/gin-gonic/gin"
)

const maxMessageSize = 1 * 1024 * 1024 // feeds carry fingerprints only, 1MB is generous

type WebsocketHub struct {
	clients  map[string]*WebsocketClient // ConnID -> client
	register chan *WebsocketClient
	msgs     chan *ClientMessage

	wg sync.WaitGroup
	mu sync.RWMutex
}

func NewHub() *WebsocketHub {
	return &WebsocketHub{
		clients:  make(map[string]*WebsocketClient),
		register: make(chan *WebsocketClient),
		msgs:     make(chan *ClientMessage, 128),
	}
}

func (h *WebsocketHub) Run(ctx context.Context) {
	slog.Info("wshub started")
	defer slog.Info("wshub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			slog.Debug("wshub registered", "connId", client.ConnID, "user", client.Info.User, "device", client.Info.DeviceID, "active", len(h.clients))
			h.mu.Unlock()

			h.wg.Add(1)
			go client.Start(context.Background())
			go h.handleClientMessages(client)
			go func() {
				// if client closes, we just remove it from the hub
				<-client.Closed

				h.mu.Lock()
				defer h.mu.Unlock()

				delete(h.clients, client.ConnID)
				slog.Debug("wshub removed", "connId", client.ConnID, "user", client.Info.User, "active", len(h.clients))
				h.wg.Done()
			}()
		case <-ctx.Done():
			return
		}
	}
}

// Messages is the stream of frames received from connected devices.
func (h *WebsocketHub) Messages() <-chan *ClientMessage {
	return h.msgs
}

func (h *WebsocketHub) Shutdown(ctx context.Context) {
	close(h.register)

	for _, client := range h.clients {
		go func() {
			// removal from the hub happens through the Closed channel
			client.Close()
			slog.Debug("wshub killed", "connId", client.ConnID)
		}()
	}

	h.wg.Wait()
	h.clients = nil
	slog.Info("wshub shutdown")
}

// WebsocketHandler upgrades the connection and registers the device with
// the hub. The first frame a device receives is the server hello.
func (h *WebsocketHub) WebsocketHandler(ctx *gin.Context) {
	user := ctx.GetString("user")
	if user == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeInvalidRequest, fmt.Errorf("user missing"))
		return
	}

	deviceID := ctx.GetHeader("X-Dotsync-Device")
	if deviceID == "" {
		deviceID = ctx.Query("device")
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewWebsocketClient(conn, &ClientInfo{
		User:     user,
		DeviceID: deviceID,
		IPAddr:   ctx.ClientIP(),
		Headers:  ctx.Request.Header.Clone(),
		Version:  ctx.GetHeader("X-Dotsync-Version"),
	})

	client.MsgTx <- syncmsg.NewSystem(version.Version)

	h.register <- client
}

func (h *WebsocketHub) SendMessage(connId string, msg *syncmsg.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[connId]; ok {
		client.MsgTx <- msg
	}
}

// SendMessageUser sends a message to every connection of the user except
// connections from excludeDevice. A device is never told about its own push.
func (h *WebsocketHub) SendMessageUser(user, excludeDevice string, msg *syncmsg.Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := false

	for _, client := range h.clients {
		if client.Info.User != user {
			continue
		}
		if excludeDevice != "" && client.Info.DeviceID == excludeDevice {
			continue
		}
		slog.Debug("wshub sending to user", "connId", client.ConnID, "user", user, "msgType", msg.Type, "msgId", msg.Id)
		select {
		case client.MsgTx <- msg:
			sent = true
		default:
			slog.Warn("wshub send buffer full", "connId", client.ConnID, "user", user)
		}
	}

	return sent
}

func (h *WebsocketHub) Broadcast(msg *syncmsg.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.MsgTx <- msg:
		default:
			slog.Warn("wshub send buffer full", "connId", client.ConnID, "user", client.Info.User)
		}
	}
}

func (h *WebsocketHub) handleClientMessages(client *WebsocketClient) {
	for {
		select {
		case <-client.Closed:
			return
		case msg, ok := <-client.MsgRx:
			if !ok {
				return
			}
			h.msgs <- &ClientMessage{
				ConnID:     client.ConnID,
				ClientInfo: client.Info,
				Message:    msg,
			}
		}
	}
}
