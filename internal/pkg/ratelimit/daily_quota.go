package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyQuotaLimiter 按 (用户, 渠道, 自然日) 维度的发送计数器。
// 尽力而为：计数器不可用时放行，不阻塞发送链路。
type DailyQuotaLimiter interface {
	// Incr 计数+1，返回当日累计值
	Incr(ctx context.Context, userID, channel string) (int64, error)
	// Count 查询当日累计值
	Count(ctx context.Context, userID, channel string) (int64, error)
}

type redisDailyQuotaLimiter struct {
	client redis.Cmdable
}

// NewRedisDailyQuotaLimiter 创建基于Redis的每日计数器
func NewRedisDailyQuotaLimiter(client redis.Cmdable) DailyQuotaLimiter {
	return &redisDailyQuotaLimiter{
		client: client,
	}
}

func (l *redisDailyQuotaLimiter) Incr(ctx context.Context, userID, channel string) (int64, error) {
	key := l.key(userID, channel)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// 首次计数时设置过期到当日结束，过零点自动清零
	if count == 1 {
		l.client.Expire(ctx, key, l.untilMidnight())
	}
	return count, nil
}

func (l *redisDailyQuotaLimiter) Count(ctx context.Context, userID, channel string) (int64, error) {
	count, err := l.client.Get(ctx, l.key(userID, channel)).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return count, nil
}

func (l *redisDailyQuotaLimiter) key(userID, channel string) string {
	return fmt.Sprintf("quota:daily:%s:%s:%s", userID, channel, time.Now().Format("20060102"))
}

func (l *redisDailyQuotaLimiter) untilMidnight() time.Duration {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return midnight.Sub(now)
}
