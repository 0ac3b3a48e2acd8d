package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"krafink/internal/logger"

	"go.uber.org/zap"
)

// SinkFunc 实际写出事件的函数
type SinkFunc func(ctx context.Context, subject string, data []byte) error

// AsyncPublisher 缓冲队列 + 单个后台 worker，Publish 不阻塞请求
type AsyncPublisher struct {
	sink    SinkFunc
	queue   chan Envelope
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	onClose func()
}

func NewAsyncPublisher(sink SinkFunc, size int) *AsyncPublisher {
	p := &AsyncPublisher{
		sink:    sink,
		queue:   make(chan Envelope, size),
		timeout: 5 * time.Second,
	}
	p.wg.Add(1)
	go p.worker()
	return p
}

func (p *AsyncPublisher) Publish(subject string, data interface{}) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- Envelope{Subject: subject, OccurredAt: time.Now().UTC(), Data: data}:
	default:
		logger.Warn("Event queue full, dropping event", zap.String("subject", subject))
	}
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()
	for env := range p.queue {
		payload, err := json.Marshal(env)
		if err != nil {
			logger.Error("Failed to marshal event", zap.String("subject", env.Subject), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.sink(ctx, env.Subject, payload); err != nil {
			logger.Warn("Failed to publish event", zap.String("subject", env.Subject), zap.Error(err))
		}
		cancel()
	}
}

// Close 停止接收新事件，等待队列中的事件发送完毕
func (p *AsyncPublisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		if p.onClose != nil {
			p.onClose()
		}
	})
}
