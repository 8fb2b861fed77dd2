package signaling

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/oneshare/signal-server-go/internal/config"
)

// Client is one websocket connection. Its ID is the peer id other
// participants see.
type Client struct {
	ID   string
	Addr string

	conn  *websocket.Conn
	codec Codec
	send  chan Envelope
	done  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce  sync.Once
	departOnce sync.Once
}

func NewClient(id, addr string, conn *websocket.Conn, codec Codec) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     id,
		Addr:   addr,
		conn:   conn,
		codec:  codec,
		send:   make(chan Envelope, config.WSSendBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the client closes.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Send queues env for delivery. A full buffer drops the event so a slow
// peer never stalls the sender.
func (c *Client) Send(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	default:
		log.Warn().
			Str("connId", c.ID).
			Str("event", env.Event).
			Msg("client send buffer full, dropping event")
		return false
	}
}

// Close stops the write pump, which flushes what is queued, sends a close
// frame and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// ReadPump reads frames until the connection fails and passes each one to
// handle. onClose runs once when the loop ends.
//
// The application runs ReadPump in a per-connection goroutine, so events
// from one connection are handled strictly in order.
func (c *Client) ReadPump(handle func(*Client, Frame), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Close()
	}()

	c.conn.SetReadLimit(config.WSMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.WSPongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("connId", c.ID).Msg("websocket read failed")
			}
			return
		}

		frame, err := c.codec.Decode(msg)
		if err != nil {
			log.Debug().Err(err).Str("connId", c.ID).Msg("dropping undecodable frame")
			continue
		}
		handle(c, frame)
	}
}

// WritePump is the only writer on the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(config.WSPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				log.Debug().Err(err).Str("connId", c.ID).Msg("websocket write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case env := <-c.send:
			if err := c.write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(env Envelope) error {
	data, err := c.codec.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Msg("failed to encode event")
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteWait))
	return c.conn.WriteMessage(c.codec.MessageType(), data)
}
