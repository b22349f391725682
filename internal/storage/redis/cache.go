package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"supportdesk/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// statsTTL 统计缓存的有效期。
//
// 统计查询要扫全表聚合，面板又会高频轮询，用一个短 TTL
// 把读压力挡在数据库之外；过期后的第一次读重新聚合。
const statsTTL = 30 * time.Second

// StatsCache 面板统计的 Redis 缓存。
type StatsCache struct {
	client *Client
}

// NewStatsCache 创建统计缓存。
func NewStatsCache(client *Client) *StatsCache {
	return &StatsCache{client: client}
}

func statsKey(userID string) string {
	return fmt.Sprintf("supportdesk:stats:%s", userID)
}

// Get 读取用户的统计缓存，未命中返回 ErrCacheMiss。
func (c *StatsCache) Get(ctx context.Context, userID string) (*domain.EmailStatistics, error) {
	raw, err := c.client.rdb.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var stats domain.EmailStatistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Set 写入用户的统计缓存。
func (c *StatsCache) Set(ctx context.Context, userID string, stats *domain.EmailStatistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, statsKey(userID), raw, statsTTL).Err()
}

// Invalidate 删除用户的统计缓存。
func (c *StatsCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.rdb.Del(ctx, statsKey(userID)).Err()
}
