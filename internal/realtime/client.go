package realtime

import (
	"context"
	"encoding/json"
	"time"

	"krafink/internal/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Dispatcher 处理客户端发来的事件
type Dispatcher interface {
	Dispatch(ctx context.Context, c *Client, env Envelope)
}

// Client 一个 websocket 连接。rooms 和 closed 由 Hub 的锁保护
type Client struct {
	UserID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  map[string]struct{}
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
	}
}

// enqueue 非阻塞写入发送队列，队列满时丢弃
func (c *Client) enqueue(msg []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		logger.Debug("Realtime send buffer full, dropping event", zap.String("user_id", c.UserID))
	}
}

// Close 关闭底层连接，读循环随之退出并注销
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Serve 运行读写循环直到连接断开
func (c *Client) Serve(ctx context.Context, d Dispatcher) {
	c.hub.Register(ctx, c)
	go c.writePump()
	c.readPump(ctx, d)
	c.hub.Unregister(context.Background(), c)
}

func (c *Client) readPump(ctx context.Context, d Dispatcher) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Websocket closed unexpectedly", zap.String("user_id", c.UserID), zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.hub.Send(c, EventError, ErrorPayload{Message: "invalid event"})
			continue
		}
		d.Dispatch(ctx, c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
