//go:build e2e

package ratelimit

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type DailyQuotaTestSuite struct {
	suite.Suite
	client  *redis.Client
	limiter DailyQuotaLimiter
}

func TestDailyQuotaSuite(t *testing.T) {
	suite.Run(t, new(DailyQuotaTestSuite))
}

func (s *DailyQuotaTestSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	s.limiter = NewRedisDailyQuotaLimiter(s.client)
}

func (s *DailyQuotaTestSuite) SetupTest() {
	s.client.FlushDB(s.T().Context())
}

func (s *DailyQuotaTestSuite) TearDownSuite() {
	s.client.FlushDB(s.T().Context())
	s.client.Close()
}

func (s *DailyQuotaTestSuite) TestIncr() {
	ctx := s.T().Context()

	count, err := s.limiter.Incr(ctx, "user-1", "EMAIL")
	s.NoError(err)
	s.Equal(int64(1), count)

	count, err = s.limiter.Incr(ctx, "user-1", "EMAIL")
	s.NoError(err)
	s.Equal(int64(2), count)

	// 不同渠道独立计数
	count, err = s.limiter.Incr(ctx, "user-1", "SMS")
	s.NoError(err)
	s.Equal(int64(1), count)
}

func (s *DailyQuotaTestSuite) TestCount() {
	ctx := s.T().Context()

	// 没有计数时返回0
	count, err := s.limiter.Count(ctx, "user-1", "EMAIL")
	s.NoError(err)
	s.Equal(int64(0), count)

	_, err = s.limiter.Incr(ctx, "user-1", "EMAIL")
	s.NoError(err)

	count, err = s.limiter.Count(ctx, "user-1", "EMAIL")
	s.NoError(err)
	s.Equal(int64(1), count)
}

func (s *DailyQuotaTestSuite) TestKeyHasDailyTTL() {
	ctx := s.T().Context()

	_, err := s.limiter.Incr(ctx, "user-1", "EMAIL")
	s.NoError(err)

	keys, err := s.client.Keys(ctx, "quota:daily:user-1:EMAIL:*").Result()
	s.NoError(err)
	s.Len(keys, 1)

	// 首次计数设置了到当日结束的过期时间
	ttl, err := s.client.TTL(ctx, keys[0]).Result()
	s.NoError(err)
	s.Positive(ttl)
}
