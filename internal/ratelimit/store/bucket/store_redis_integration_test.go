//go:build integration

package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fasela/internal/ratelimit/models"
	"fasela/pkg/testutil/containers"
)

type RedisBucketSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
	ctx   context.Context
}

func TestRedisBucketSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketSuite))
}

func (s *RedisBucketSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.ctx = context.Background()
}

func (s *RedisBucketSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisBucketSuite) TestWindowAdmitsUpToLimit() {
	limit := models.Limit{Requests: 2, Window: time.Minute}
	key := models.Key(models.ClassDonate, "203.0.113.7")

	first, err := s.store.Allow(s.ctx, key, limit)
	s.Require().NoError(err)
	s.True(first.Allowed)
	s.Equal(1, first.Remaining)

	second, err := s.store.Allow(s.ctx, key, limit)
	s.Require().NoError(err)
	s.True(second.Allowed)
	s.Equal(0, second.Remaining)

	third, err := s.store.Allow(s.ctx, key, limit)
	s.Require().NoError(err)
	s.False(third.Allowed)
	s.Positive(third.RetryAfter)
	s.LessOrEqual(third.RetryAfter, time.Minute)

	ttl, err := s.redis.Client.PTTL(s.ctx, key).Result()
	s.Require().NoError(err)
	s.Positive(ttl, "buckets expire on their own")
}

func (s *RedisBucketSuite) TestShortWindowRecovers() {
	limit := models.Limit{Requests: 1, Window: 200 * time.Millisecond}

	res, err := s.store.Allow(s.ctx, "k", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.store.Allow(s.ctx, "k", limit)
	s.Require().NoError(err)
	s.False(res.Allowed)

	s.Eventually(func() bool {
		res, err := s.store.Allow(s.ctx, "k", limit)
		return err == nil && res.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisBucketSuite) TestConcurrentCallersShareOneWindow() {
	limit := models.Limit{Requests: 5, Window: time.Minute}
	other := NewRedis(s.redis.Client)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 20 {
		store := s.store
		if i%2 == 1 {
			store = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Allow(s.ctx, "shared", limit)
			if err != nil || !res.Allowed {
				return
			}
			mu.Lock()
			allowed++
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Equal(5, allowed)
}

func (s *RedisBucketSuite) TestReset() {
	limit := models.Limit{Requests: 1, Window: time.Hour}
	_, err := s.store.Allow(s.ctx, "k", limit)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx, "k"))
	res, err := s.store.Allow(s.ctx, "k", limit)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
