package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/dotsync/dotsync/internal/utils"
)

const (
	writeTimeout   = 20 * time.Second
	shutdownReason = "shutdown"
)

// WebsocketClient represents a connected device on the events socket.
type WebsocketClient struct {
	ConnID string
	Info   *ClientInfo
	MsgRx  chan *syncmsg.Message
	MsgTx  chan *syncmsg.Message
	Closed chan struct{}

	conn      *websocket.Conn
	wsDone    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWebsocketClient(conn *websocket.Conn, info *ClientInfo) *WebsocketClient {
	return &WebsocketClient{
		ConnID: utils.TokenHex(4),
		Info:   info,
		MsgRx:  make(chan *syncmsg.Message, 64),
		MsgTx:  make(chan *syncmsg.Message, 64),
		Closed: make(chan struct{}),
		wsDone: make(chan struct{}),
		conn:   conn,
	}
}

func (c *WebsocketClient) Start(ctx context.Context) {
	slog.Debug("wsclient start", "connId", c.ConnID)
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

func (c *WebsocketClient) Close() {
	c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	c.wg.Wait()
}

func (c *WebsocketClient) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.wsDone)
		c.conn.Close(status, reason)

		// wait for both read and write loops to finish
		c.wg.Wait()

		close(c.Closed)
		close(c.MsgRx)
		close(c.MsgTx)
		slog.Debug("wsclient closed", "connId", c.ConnID)
	})
}

func (c *WebsocketClient) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("wsclient reader shutdown", "connId", c.ConnID)
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		var data *syncmsg.Message

		err := wsjson.Read(ctx, c.conn, &data)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				// connection closed by client
			} else if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusNoStatusRcvd {
				slog.Warn("wsclient reader", "error", err, "connId", c.ConnID)
			}
			return
		}

		select {
		case <-c.wsDone:
			return

		case c.MsgRx <- data:

		default:
			slog.Warn("wsclient reader buffer full", "connId", c.ConnID, "dropped", data.Id)
		}
	}
}

func (c *WebsocketClient) writeLoop(ctx context.Context) {
	defer func() {
		slog.Debug("wsclient writer shutdown", "connId", c.ConnID)
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		select {
		case msg := <-c.MsgTx:

			ctxWrite, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(ctxWrite, c.conn, msg)
			cancel()
			if err != nil {
				slog.Error("wsclient writer", "connId", c.ConnID, "msgId", msg.Id, "msgType", msg.Type, "error", err)
			} else {
				slog.Debug("wsclient writer", "connId", c.ConnID, "msgId", msg.Id, "msgType", msg.Type)
			}

		case <-c.wsDone:
			return

		case <-ctx.Done():
			return
		}
	}
}
