package ioc

import (
	"gitee.com/flycash/notification-dispatch/internal/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func InitDailyQuotaLimiter(rdb *redis.Client) ratelimit.DailyQuotaLimiter {
	return ratelimit.NewRedisDailyQuotaLimiter(rdb)
}
