package regweb

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// MsgTypeKeyEvent is the only message type this relay ever pushes: a single
// registry notification for the key the client subscribed to.
const MsgTypeKeyEvent = "key_event"

// Message is the envelope sent to every connected browser client.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// keyEventPayload is the Payload carried by a MsgTypeKeyEvent Message.
type keyEventPayload struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Owner string `json:"owner,omitempty"`
	Event string `json:"event"`
}

// Client is a single websocket connection subscribed to exactly one
// registry key's event stream.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	key  string

	send chan *Message

	mu     sync.Mutex
	closed bool
}

// NewClient wraps conn, subscribed to key's events.
func NewClient(hub *Hub, conn *websocket.Conn, key string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		key:  key,
		send: make(chan *Message, sendBufferSize),
	}
}

// Send queues msg for delivery, dropping it if the client's outbound buffer
// is full rather than blocking the registry's notify fan-out.
func (c *Client) Send(msg *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		log.WarnS(context.Background(), "send buffer full, dropping message", "key", c.key)
	}
}

// Close closes the underlying connection and outbound queue exactly once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// readPump drains the connection purely to detect disconnects and respond to
// control frames; this relay is one-directional, so any text frame the
// client sends is ignored beyond keeping the read deadline alive.
func (c *Client) readPump() {
	defer func() { c.hub.unregister <- c }()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps queued messages, plus periodic pings, to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.WarnS(context.Background(), "failed to marshal outbound message", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
