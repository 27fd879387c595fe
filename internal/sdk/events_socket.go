package sdk

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
)

const (
	wsClientChannelSize  = 64
	wsClientPingPeriod   = 15 * time.Second
	wsClientPingTimeout  = 5 * time.Second
	wsClientWriteTimeout = 5 * time.Second
)

// wsClient owns one live websocket connection.
type wsClient struct {
	conn      *websocket.Conn
	msgRx     chan *syncmsg.Message // messages received from the websocket
	msgTx     chan *syncmsg.Message // messages sent to the websocket
	closed    chan struct{}         // websocket is closed
	closing   chan struct{}         // websocket is closing
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		msgRx:   make(chan *syncmsg.Message, wsClientChannelSize),
		msgTx:   make(chan *syncmsg.Message, wsClientChannelSize),
		closed:  make(chan struct{}),
		closing: make(chan struct{}),
		conn:    conn,
	}
}

func (c *wsClient) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

func (c *wsClient) Close() {
	c.closeConnection(websocket.StatusNormalClosure, "shutdown")
	c.wg.Wait()
}

func (c *wsClient) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.conn.Close(status, reason)

		// wait for both read and write loops to finish
		c.wg.Wait()

		close(c.closed)
		close(c.msgRx)
		close(c.msgTx)
	})
}

func (c *wsClient) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("socket reader shutdown")
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var data *syncmsg.Message
		if err := wsjson.Read(ctx, c.conn, &data); err != nil {
			if !isWSExpectedCloseError(err) {
				slog.Warn("socket RECV", "error", err)
			}
			return
		}

		select {
		case <-c.closing:
			return

		case c.msgRx <- data:

		default:
			slog.Warn("socket RECV buffer full", "dropped", data.Id)
		}
	}
}

func (c *wsClient) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(wsClientPingPeriod)
	defer func() {
		slog.Debug("socket writer shutdown")
		pingTicker.Stop()
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.closing:
			return

		case msg, ok := <-c.msgTx:
			if !ok {
				return
			}

			slog.Debug("socket SEND", "id", msg.Id, "type", msg.Type)

			ctxWrite, cancel := context.WithTimeout(ctx, wsClientWriteTimeout)
			err := wsjson.Write(ctxWrite, c.conn, msg)
			cancel()

			if err != nil {
				slog.Error("socket SEND", "error", err)
				return
			}

		case <-pingTicker.C:
			// keep the connection alive through idle periods
			ctxPing, cancel := context.WithTimeout(ctx, wsClientPingTimeout)
			err := c.conn.Ping(ctxPing)
			cancel()

			if err != nil {
				slog.Error("socket PING", "error", err)
				return
			}
		}
	}
}

// isWSExpectedCloseError returns true if the error is an expected connection closure
func isWSExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}

	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
