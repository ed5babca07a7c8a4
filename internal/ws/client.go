package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chat-sync/internal/logx"
	"chat-sync/internal/observability"
	"chat-sync/internal/presence"
	"chat-sync/internal/protocol"
)

const (
	// timeout for writing one frame to the socket.
	writeWait = 10 * time.Second

	// time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// ping period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maximum inbound frame size in bytes.
	maxMessageSize = 16 * 1024

	// outbound frames queued per session before Send fails.
	sendQueueSize = 256

	// CloseCodeSessionClosed tells the client the server closed its session,
	// typically because the same user connected from another client instance.
	CloseCodeSessionClosed = 4001
)

// Client owns one gorilla websocket connection. It implements
// presence.Session: Send never blocks and Close is idempotent.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	info    ConnInfo
	logger  zerolog.Logger
}

// NewClient wraps conn. A nil limiter disables inbound rate limiting.
func NewClient(conn *websocket.Conn, info ConnInfo, limiter *rate.Limiter) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		limiter: limiter,
		info:    info,
		logger: logx.Logger().With().
			Str("component", "ws").
			Str("conn_id", info.ConnID).
			Int("auth_user_id", info.UserID).
			Logger(),
	}
}

// Send queues a frame for the write pump.
func (c *Client) Send(frame protocol.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return presence.ErrSessionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return presence.ErrSessionClosed
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("send queue full, dropping frame")
		return presence.ErrSendQueueFull
	}
}

// Close stops the write pump, which sends a close frame and closes the
// socket. Send fails once Close returns.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// ReadPump reads frames until the socket fails and hands each one to handle.
// It returns the reason the loop ended.
func (c *Client) ReadPump(ctx context.Context, handle func(context.Context, []byte)) string {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err.Error()
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				observability.IncWSEvent("ws_error")
				c.logger.Info().Err(err).Msg("unexpected close")
			}
			return err.Error()
		}

		if c.limiter != nil && !c.limiter.Allow() {
			observability.IncInboundFrame("any", "rate_limited")
			if err := c.Send(protocol.ErrorFrame(ErrRateLimited)); err != nil {
				c.logger.Debug().Err(err).Msg("send rate limit error")
			}
			continue
		}
		handle(ctx, data)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close connection")
		}
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(CloseCodeSessionClosed, "session closed"))
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("write failed")
		return false
	}
	return true
}
