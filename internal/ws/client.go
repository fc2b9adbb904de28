package ws

import (
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// Notification frames are small; a subscriber that cannot accept one
// within this window is treated as gone.
const writeWait = 10 * time.Second

// Client wraps a websocket connection subscribed to a user's
// notification topic.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger
}

// NewClient constructs a client around an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send delivers one notification frame. A write failure closes the
// connection; the hub drops the subscriber on the returned error.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
