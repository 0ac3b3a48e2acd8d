package realtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"krafink/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presencePrefix    = "krafink:presence:"
	presenceInstances = "krafink:presence:instances"

	DefaultPresenceTTL = 30 * time.Second
)

// RedisPresence 多实例部署时共享在线状态。
// 每个实例一个哈希表记录本实例上每个用户的连接数，带过期时间，由 Run 定期续期；
// 实例崩溃后其记录在 ttl 内自然过期，不会把用户永久标记为在线。
type RedisPresence struct {
	client   *redis.Client
	instance string
	ttl      time.Duration
}

func NewRedisPresence(client *redis.Client, instanceID string, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &RedisPresence{client: client, instance: instanceID, ttl: ttl}
}

func instanceKey(instanceID string) string {
	return presencePrefix + instanceID
}

// Run 每 ttl/3 续期一次，直到 ctx 结束
func (p *RedisPresence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl / 3)
	defer ticker.Stop()
	for {
		if err := p.heartbeat(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Presence heartbeat failed", zap.String("instance", p.instance), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *RedisPresence) heartbeat(ctx context.Context) error {
	now := time.Now()
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, presenceInstances, redis.Z{Score: float64(now.Unix()), Member: p.instance})
		pipe.ZRemRangeByScore(ctx, presenceInstances, "-inf", strconv.FormatInt(now.Add(-p.ttl).Unix(), 10))
		pipe.Expire(ctx, instanceKey(p.instance), p.ttl)
		return nil
	})
	return err
}

// Close 正常退出时删除本实例的记录
func (p *RedisPresence) Close(ctx context.Context) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, presenceInstances, p.instance)
		pipe.Del(ctx, instanceKey(p.instance))
		return nil
	})
	return err
}

// Connect 返回 true 表示用户此前在任何实例上都不在线
func (p *RedisPresence) Connect(ctx context.Context, userID string) (bool, error) {
	var incr *redis.IntCmd
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, instanceKey(p.instance), userID, 1)
		pipe.Expire(ctx, instanceKey(p.instance), p.ttl)
		pipe.ZAdd(ctx, presenceInstances, redis.Z{Score: float64(time.Now().Unix()), Member: p.instance})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("presence connect: %w", err)
	}
	if incr.Val() != 1 {
		return false, nil
	}
	counts, err := p.counts(ctx, []string{userID}, false)
	if err != nil {
		return false, fmt.Errorf("presence connect: %w", err)
	}
	return counts[userID] == 0, nil
}

// Disconnect 返回 true 表示用户在所有实例上都已离线
func (p *RedisPresence) Disconnect(ctx context.Context, userID string) (bool, error) {
	key := instanceKey(p.instance)
	n, err := p.client.HIncrBy(ctx, key, userID, -1).Result()
	if err != nil {
		return false, fmt.Errorf("presence disconnect: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if err := p.client.HDel(ctx, key, userID).Err(); err != nil {
		return false, fmt.Errorf("presence cleanup: %w", err)
	}
	counts, err := p.counts(ctx, []string{userID}, false)
	if err != nil {
		return false, fmt.Errorf("presence disconnect: %w", err)
	}
	return counts[userID] == 0, nil
}

func (p *RedisPresence) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	counts, err := p.counts(ctx, userIDs, true)
	if err != nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	for _, id := range userIDs {
		out[id] = counts[id] > 0
	}
	return out, nil
}

// counts 汇总仍在续期的实例上的连接数，includeSelf 为 false 时跳过本实例
func (p *RedisPresence) counts(ctx context.Context, userIDs []string, includeSelf bool) (map[string]int64, error) {
	cutoff := strconv.FormatInt(time.Now().Add(-p.ttl).Unix(), 10)
	instances, err := p.client.ZRangeByScore(ctx, presenceInstances, &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.SliceCmd, 0, len(instances))
	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, inst := range instances {
			if inst == p.instance && !includeSelf {
				continue
			}
			cmds = append(cmds, pipe.HMGet(ctx, instanceKey(inst), userIDs...))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	acc := make(map[string]int64, len(userIDs))
	for _, cmd := range cmds {
		addCounts(acc, userIDs, cmd.Val())
	}
	return acc, nil
}

// addCounts 累加 HMGET 的结果；缺失或无法解析的字段按 0 计
func addCounts(acc map[string]int64, userIDs []string, vals []interface{}) {
	for i, id := range userIDs {
		if i >= len(vals) {
			return
		}
		s, _ := vals[i].(string)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			acc[id] += n
		}
	}
}
