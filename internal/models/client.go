package models

import (
	"io"
	"sync"

	"github.com/google/uuid"
)

// Conn is the part of a websocket connection the arena writes to.
type Conn interface {
	WriteJSON(v interface{}) error
}

type Client struct {
	Id   uuid.UUID `json:"clientid"`
	Conn Conn      `json:"-"`

	writeMu sync.Mutex
}

// Send serialises writes; both panel streams broadcast to the same connection.
func (c *Client) Send(v interface{}) error {
	if c.Conn == nil {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// Close disconnects the client if its connection can be closed, which makes
// the read loop on the other end return.
func (c *Client) Close() error {
	closer, ok := c.Conn.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}
