//go:build integration

package bucket_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/internal/ratelimit/store/bucket"
	"contactlink/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
	ctx   context.Context
}

func TestRedisBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.ctx = context.Background()
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.store = bucket.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) TestAllowUpToLimit() {
	for i := range 3 {
		result, err := s.store.Allow(s.ctx, "rl:test:limit", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.store.Allow(s.ctx, "rl:test:limit", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Positive(result.RetryAfter)

	count, err := s.redis.Client.ZCard(s.ctx, "rl:test:limit").Result()
	s.Require().NoError(err)
	s.EqualValues(3, count, "denied requests are withdrawn")

	ttl, err := s.redis.Client.PTTL(s.ctx, "rl:test:limit").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisBucketStoreSuite) TestWindowSlides() {
	now := time.Now()
	store := bucket.NewRedisBucketStore(s.redis.Client, bucket.WithRedisClock(func() time.Time { return now }))

	for range 2 {
		_, err := store.Allow(s.ctx, "rl:test:slide", 2, time.Second)
		s.Require().NoError(err)
	}
	result, err := store.Allow(s.ctx, "rl:test:slide", 2, time.Second)
	s.Require().NoError(err)
	s.False(result.Allowed)

	now = now.Add(1100 * time.Millisecond)
	result, err = store.Allow(s.ctx, "rl:test:slide", 2, time.Second)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketStoreSuite) TestConcurrentInstances() {
	// two stores sharing one Redis behave like two service instances
	other := bucket.NewRedisBucketStore(s.redis.Client)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := s.store
			if i%2 == 1 {
				store = other
			}
			result, err := store.Allow(s.ctx, "rl:test:shared", 10, time.Minute)
			if err == nil && result.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(10, admitted)
}
