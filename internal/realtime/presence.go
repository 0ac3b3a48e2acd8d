package realtime

import (
	"context"
	"sync"
)

// Presence 记录用户在线状态。同一用户可能有多个连接，按连接数计数
type Presence interface {
	// Connect 返回该用户是否从离线变为在线
	Connect(ctx context.Context, userID string) (bool, error)
	// Disconnect 返回该用户是否已无任何连接
	Disconnect(ctx context.Context, userID string) (bool, error)
	Online(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// MemoryPresence 进程内在线状态，重启即丢失，也不跨实例共享
type MemoryPresence struct {
	mu    sync.Mutex
	conns map[string]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{conns: make(map[string]int)}
}

func (p *MemoryPresence) Connect(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns[userID]++
	return p.conns[userID] == 1, nil
}

func (p *MemoryPresence) Disconnect(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.conns[userID] - 1
	if n <= 0 {
		delete(p.conns, userID)
		return true, nil
	}
	p.conns[userID] = n
	return false, nil
}

func (p *MemoryPresence) Online(_ context.Context, userIDs []string) (map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = p.conns[id] > 0
	}
	return out, nil
}
