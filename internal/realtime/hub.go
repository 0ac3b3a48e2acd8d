package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"krafink/internal/logger"

	"go.uber.org/zap"
)

// Hub 管理所有实时连接和房间。房间以用户 ID 或会话 ID 为键，推送是尽力而为的
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
	presence Presence
}

func NewHub(presence Presence) *Hub {
	if presence == nil {
		presence = NewMemoryPresence()
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		presence: presence,
	}
}

// Register 登记连接并加入用户房间；用户首次上线时广播在线状态
func (h *Hub) Register(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, UserRoom(c.UserID))
	h.mu.Unlock()

	first, err := h.presence.Connect(ctx, c.UserID)
	if err != nil {
		logger.Warn("Presence connect failed", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}
	if first {
		h.Broadcast(EventUserStatus, UserStatus{UserID: c.UserID, Online: true})
	}
}

// Unregister 移出所有房间并关闭发送队列；用户最后一个连接断开时广播离线
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closed = true
	close(c.send)
	h.mu.Unlock()

	last, err := h.presence.Disconnect(ctx, c.UserID)
	if err != nil {
		logger.Warn("Presence disconnect failed", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}
	if last {
		h.Broadcast(EventUserStatus, UserStatus{UserID: c.UserID, Online: false})
	}
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.joinLocked(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Emit 推送事件到房间内所有连接，房间为空时直接丢弃
func (h *Hub) Emit(room, event string, payload interface{}) {
	h.emit([]string{room}, event, payload, "")
}

// EmitExcept 推送到多个房间，每个连接只收到一次；exceptUserID 的连接全部跳过
func (h *Hub) EmitExcept(rooms []string, event string, payload interface{}, exceptUserID string) {
	h.emit(rooms, event, payload, exceptUserID)
}

func (h *Hub) emit(rooms []string, event string, payload interface{}, exceptUserID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]struct{})
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if exceptUserID != "" && c.UserID == exceptUserID {
				continue
			}
			targets[c] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return
	}
	msg, err := encode(event, payload)
	if err != nil {
		logger.Error("Failed to encode realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	for c := range targets {
		c.enqueue(msg)
	}
}

// Broadcast 推送给所有连接（在线状态变化）
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msg, err := encode(event, payload)
	if err != nil {
		logger.Error("Failed to encode realtime event", zap.String("event", event), zap.Error(err))
		return
	}
	for c := range h.clients {
		c.enqueue(msg)
	}
}

// Send 只发给一个连接
func (h *Hub) Send(c *Client, event string, payload interface{}) {
	msg, err := encode(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	c.enqueue(msg)
}

func (h *Hub) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	return h.presence.Online(ctx, userIDs)
}

// Close 关闭所有连接，用于进程退出
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}
