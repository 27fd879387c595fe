package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/imroc/req/v3"
)

const (
	eventsBufferSize        = 16
	eventsReconnectDelay    = 1 * time.Second
	eventsMaxReconnectDelay = 8 * time.Second
	eventsReconnectTimeout  = 10 * time.Second
	wsClientMaxMessageSize  = 1 * 1024 * 1024
	eventsPath              = "/api/v1/events"
)

// EventsAPI manages the realtime feed socket. It reconnects with backoff
// whenever the connection drops; consumers just read from Get.
type EventsAPI struct {
	client           *req.Client
	wsClient         *wsClient
	messages         chan *syncmsg.Message
	ctx              context.Context
	cancel           context.CancelFunc
	mu               sync.RWMutex
	connected        bool
	reconnectAttempt int
}

func newEventsAPI(client *req.Client) *EventsAPI {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventsAPI{
		client:   client,
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan *syncmsg.Message, eventsBufferSize),
	}
}

// Connect initiates a WebSocket connection
func (e *EventsAPI) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected && e.wsClient != nil {
		return nil
	}

	wsClient, err := e.connectLocked(ctx)
	if err != nil {
		return fmt.Errorf("sdk: events: connect failed: %w", err)
	}

	go e.manageConnection(wsClient)
	return nil
}

// IsConnected returns the current connection status
func (e *EventsAPI) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.connected
}

// Get returns a channel for receiving WebSocket messages
func (e *EventsAPI) Get() <-chan *syncmsg.Message {
	return e.messages
}

// Send sends a message through the WebSocket
func (e *EventsAPI) Send(msg *syncmsg.Message) error {
	e.mu.RLock()
	wsClient := e.wsClient
	connected := e.connected
	e.mu.RUnlock()

	if !connected || wsClient == nil {
		return ErrEventsNotConnected
	}

	select {
	case wsClient.msgTx <- msg:
		slog.Debug("socketmgr tx", "id", msg.Id, "type", msg.Type)
		return nil
	default:
		return ErrEventsMessageQueueFull
	}
}

// Close terminates the WebSocket connection and cleans up
func (e *EventsAPI) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()

	if e.wsClient != nil {
		e.wsClient.Close()
		e.wsClient = nil
	}

	e.connected = false
	slog.Info("socketmgr closed")
}

// connectLocked creates a new WebSocket connection (must be called with lock held)
func (e *EventsAPI) connectLocked(ctx context.Context) (*wsClient, error) {
	if e.wsClient != nil {
		e.wsClient.Close()
		e.wsClient = nil
		e.connected = false
	}

	url, err := e.fullURL()
	if err != nil {
		return nil, fmt.Errorf("sdk: events: failed to get full url: %w", err)
	}

	// common headers carry the device id and auth token
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: e.client.Headers.Clone(),
	})
	if err != nil {
		return nil, fmt.Errorf("sdk: events: failed to connect to %s: %w", url, err)
	}
	conn.SetReadLimit(wsClientMaxMessageSize)

	wsClient := newWSClient(conn)
	wsClient.Start(e.ctx)

	e.wsClient = wsClient
	e.connected = true

	slog.Info("socketmgr client connected")
	return wsClient, nil
}

// manageConnection handles the WebSocket connection lifecycle
func (e *EventsAPI) manageConnection(wsClient *wsClient) {
	go e.consumeMessages(wsClient)

	select {
	case <-wsClient.closed:
		slog.Info("socketmgr client disconnected, will reconnect")

		e.mu.Lock()
		if e.wsClient == wsClient {
			e.wsClient = nil
			e.connected = false
			e.reconnectAttempt = 0
		}
		e.mu.Unlock()

		select {
		case <-e.ctx.Done():
			return
		default:
			e.reconnectWithBackoff()
		}

	case <-e.ctx.Done():
		return
	}
}

// consumeMessages processes incoming messages from the websocket client
func (e *EventsAPI) consumeMessages(wsClient *wsClient) {
	for {
		select {
		case <-e.ctx.Done():
			return

		case <-wsClient.closed:
			return

		case msg, ok := <-wsClient.msgRx:
			if !ok {
				slog.Debug("socketmgr rx closed")
				return
			}

			slog.Debug("socketmgr rx", "id", msg.Id, "type", msg.Type)

			select {
			case e.messages <- msg:
			default:
				slog.Warn("socketmgr rx buffer full. dropped", "id", msg.Id, "type", msg.Type)
			}
		}
	}
}

// reconnectWithBackoff attempts to reconnect with exponential backoff
func (e *EventsAPI) reconnectWithBackoff() {
	delay := eventsReconnectDelay

	for {
		e.reconnectAttempt++

		select {
		case <-e.ctx.Done():
			return
		case <-time.After(delay):
		}

		slog.Info("socketmgr attempting reconnection", "attempt", e.reconnectAttempt, "delay", delay)

		ctx, cancel := context.WithTimeout(e.ctx, eventsReconnectTimeout)

		e.mu.Lock()
		wsClient, err := e.connectLocked(ctx)
		e.mu.Unlock()

		cancel()

		if err == nil {
			go e.manageConnection(wsClient)
			return
		}

		// add some jitter to the delay
		delay = min(delay*2, eventsMaxReconnectDelay)
		jitterFactor := 0.75 + (rand.Float64() * 0.5)
		delay = time.Duration(float64(delay) * jitterFactor)
	}
}

// fullURL builds the complete WebSocket URL with query parameters
func (e *EventsAPI) fullURL() (string, error) {
	baseURL, err := url.JoinPath(e.client.BaseURL, eventsPath)
	if err != nil {
		return "", fmt.Errorf("failed to join path: %w", err)
	}

	queryParams := e.client.QueryParams
	if len(queryParams) > 0 {
		baseURL = baseURL + "?" + queryParams.Encode()
	}

	return toWebsocketURL(baseURL), nil
}

// toWebsocketURL converts an HTTP URL to a WebSocket URL
func toWebsocketURL(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + url[8:]
	} else if strings.HasPrefix(url, "http://") {
		return "ws://" + url[7:]
	}
	return url
}
