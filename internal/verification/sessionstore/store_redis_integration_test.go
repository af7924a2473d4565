//go:build integration

package sessionstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/verification/models"
	"agegate/internal/verification/sessionstore"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *sessionstore.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = sessionstore.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func makePending() *models.PendingSession {
	return &models.PendingSession{
		SessionID: domain.NewSessionID(),
		Verifier:  "pkce-verifier-value",
		WidgetID:  "shop-checkout",
		Provider:  domain.ProviderDirect,
		Purpose:   models.PurposeSelf,
		CreatedAt: time.Now(),
	}
}

func (s *RedisStoreSuite) TestPutAndRedeem() {
	ctx := context.Background()
	pending := makePending()
	pending.LinkID = domain.NewLinkID()

	s.Require().NoError(s.store.Put(ctx, "state-token-1", pending, time.Minute))

	got, err := s.store.Redeem(ctx, "state-token-1")
	s.Require().NoError(err)
	s.Equal(pending.SessionID, got.SessionID)
	s.Equal(pending.Verifier, got.Verifier)
	s.Equal(pending.LinkID, got.LinkID)
	s.Equal(models.PurposeSelf, got.Purpose)
}

func (s *RedisStoreSuite) TestRedeemUnknownState() {
	_, err := s.store.Redeem(context.Background(), "never-stored")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestRedeemExactlyOnce verifies that concurrent callback deliveries racing on
// the same state token produce exactly one winner: GETDEL is atomic.
func (s *RedisStoreSuite) TestRedeemExactlyOnce() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "contested-state", makePending(), time.Minute))

	const goroutines = 20
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var notFoundCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Redeem(ctx, "contested-state")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFoundCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one redeem should succeed")
	s.Equal(int32(goroutines-1), notFoundCount.Load())
}

func (s *RedisStoreSuite) TestTTLExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "short-lived", makePending(), 100*time.Millisecond))

	time.Sleep(300 * time.Millisecond)

	_, err := s.store.Redeem(ctx, "short-lived")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
