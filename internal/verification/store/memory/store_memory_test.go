package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/verification/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.store = NewStore()
	s.ctx = context.Background()
}

func (s *StoreSuite) newPendingSession() *models.VerificationSession {
	now := time.Now()
	return &models.VerificationSession{
		ID:        domain.NewSessionID(),
		WidgetID:  "shop-checkout",
		Provider:  domain.ProviderDirect,
		Purpose:   models.PurposeSelf,
		Status:    models.SessionStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func (s *StoreSuite) TestCreateAndGet() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	got, err := s.store.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(models.SessionStatusPending, got.Status)
}

func (s *StoreSuite) TestCreateDuplicate() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))
	s.ErrorIs(s.store.Create(s.ctx, session), sentinel.ErrConflict)
}

func (s *StoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, domain.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestGetReturnsCopy() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	got, err := s.store.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	got.Status = models.SessionStatusFailed

	again, err := s.store.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusPending, again.Status)
}

func (s *StoreSuite) TestMarkOutcomeVerified() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	age := 34
	s.Require().NoError(s.store.MarkOutcome(s.ctx, session.ID, models.SessionStatusVerified, &age, ""))

	got, err := s.store.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusVerified, got.Status)
	s.Require().NotNil(got.VerifiedAge)
	s.Equal(34, *got.VerifiedAge)
}

func (s *StoreSuite) TestMarkOutcomeAlreadyTerminal() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	s.Require().NoError(s.store.MarkOutcome(s.ctx, session.ID, models.SessionStatusFailed, nil, "exchange_failed"))

	age := 25
	err := s.store.MarkOutcome(s.ctx, session.ID, models.SessionStatusVerified, &age, "")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	// The first outcome sticks.
	got, err := s.store.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusFailed, got.Status)
	s.Equal("exchange_failed", got.FailureReason)
}

func (s *StoreSuite) TestMarkOutcomeMissing() {
	err := s.store.MarkOutcome(s.ctx, domain.NewSessionID(), models.SessionStatusFailed, nil, "x")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestMarkOutcomeConcurrent() {
	session := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, session))

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			age := 30
			results <- s.store.MarkOutcome(s.ctx, session.ID, models.SessionStatusVerified, &age, "")
		}()
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
		} else {
			s.ErrorIs(err, sentinel.ErrInvalidState)
		}
	}
	s.Equal(1, successes)
}

func (s *StoreSuite) TestExpireStale() {
	now := time.Now()

	stale := s.newPendingSession()
	stale.ExpiresAt = now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, stale))

	fresh := s.newPendingSession()
	s.Require().NoError(s.store.Create(s.ctx, fresh))

	decided := s.newPendingSession()
	decided.ExpiresAt = now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, decided))
	s.Require().NoError(s.store.MarkOutcome(s.ctx, decided.ID, models.SessionStatusVerified, nil, ""))

	expired, err := s.store.ExpireStale(s.ctx, now)
	s.Require().NoError(err)
	s.Equal([]domain.SessionID{stale.ID}, expired)

	got, err := s.store.Get(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusExpired, got.Status)

	// Terminal sessions are never overwritten by the sweep.
	got, err = s.store.Get(s.ctx, decided.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusVerified, got.Status)
}

func (s *StoreSuite) TestExpireStaleIdempotent() {
	now := time.Now()
	stale := s.newPendingSession()
	stale.ExpiresAt = now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(s.ctx, stale))

	first, err := s.store.ExpireStale(s.ctx, now)
	s.Require().NoError(err)
	s.Len(first, 1)

	second, err := s.store.ExpireStale(s.ctx, now)
	s.Require().NoError(err)
	s.Empty(second)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}
