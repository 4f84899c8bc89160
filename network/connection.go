// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/bopserver/protocol"
)

const (
	DefaultPingInterval = 30 * time.Second
	DefaultReadTimeout  = 45 * time.Second
	writeTimeout        = 10 * time.Second
	sendQueueSize       = 64
	maxFrameSize        = 64 << 10
)

var (
	ErrConnectionClosed = errors.New("network: connection closed")
	ErrSendQueueFull    = errors.New("network: send queue full")
)

// Connection is one client transport carrying JSON {type,payload} frames.
type Connection interface {
	Send(msg protocol.Message) error
	ReadMessage() ([]byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
}

// WSConnection wraps a gorilla websocket. Writes go through a buffered queue drained
// by a single writer goroutine, so Send never blocks on the network.
type WSConnection struct {
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	heartbeat   time.Duration
	readTimeout time.Duration
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	c := &WSConnection{
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		heartbeat:   DefaultPingInterval,
		readTimeout: DefaultReadTimeout,
	}
	conn.SetReadLimit(maxFrameSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	})
	return c
}

// SetHeartbeat changes the ping interval; the read deadline is 1.5 intervals. Call
// before Start.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.heartbeat = interval
	c.readTimeout = interval + interval/2
}

// Start launches the writer and arms the first read deadline.
func (c *WSConnection) Start() {
	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	go c.writePump()
}

// Send queues msg. A full queue means the client is not keeping up; the message is
// dropped rather than stalling the room that sent it.
func (c *WSConnection) Send(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendQueueFull
	}
}

// ReadMessage blocks for the next text frame. Any client frame counts as liveness.
func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	return data, nil
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close is idempotent and unblocks both the reader and the writer.
func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
