/*
Package realtime manages the client's single push connection to the backend.

This file defines the connection struct, one live WebSocket. It owns the read and write
loops (heartbeats, deadlines, the outbound queue) and hands every inbound frame to the
Channel in arrival order.
*/
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"xalvion/internal/app/model"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time to wait for a Pong from the backend.
	pongWait = 60 * time.Second

	// frequency at which Ping messages are sent.
	pingPeriod = (pongWait * 9) / 10

	// default maximum size (in bytes) of an inbound frame.
	defaultReadLimit = 64 << 10

	// capacity of the outbound queue.
	sendBuffer = 64
)

// connection is one live WebSocket and its outbound queue.
type connection struct {
	id string
	ws *websocket.Conn

	// mu guards closed and the close of send.
	mu     sync.Mutex
	closed bool
	send   chan []byte

	// done is closed when the read loop exits.
	done chan struct{}

	logger zerolog.Logger
}

func newConnection(id string, ws *websocket.Conn, logger zerolog.Logger) *connection {
	return &connection{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("conn_id", id).Logger(),
	}
}

// enqueue queues a frame without blocking. It reports false if the connection is shutting
// down or its queue is full.
func (c *connection) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Outbound queue full, dropping frame")
		return false
	}
}

// shutdown stops the write loop, which sends a close frame and closes the socket.
func (c *connection) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads frames until the socket fails, passing each well-formed frame to deliver.
func (c *connection) readPump(readLimit int64, deliver func(*connection, model.Envelope)) {
	defer func() {
		c.shutdown()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Socket close after read loop")
		}
		close(c.done)
	}()

	c.ws.SetReadLimit(readLimit)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection lost")
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn().Err(err).Int("frame_len", len(raw)).Msg("Backend sent invalid JSON frame")
			continue
		}

		if !env.Type.Inbound() {
			c.logger.Debug().Str("event_type", string(env.Type)).Msg("Ignoring unknown event type")
			continue
		}

		deliver(c, env)
	}
}

// writePump writes queued frames and periodic pings until the queue is closed or a write fails.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Socket close after write loop")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueued(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueued writes one frame, or a close frame once the queue is closed.
// It reports whether the write loop should continue.
func (c *connection) writeQueued(frame []byte, ok bool) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteMessage(websocket.CloseMessage, msg); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

func (c *connection) writePing() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
