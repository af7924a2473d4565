//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/verification/models"
	"agegate/internal/verification/store/postgres"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
	"agegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_sessions"))
}

func newPendingSession() *models.VerificationSession {
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

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	session := newPendingSession()
	session.Purpose = models.PurposeGuardian
	session.LinkID = domain.NewLinkID()

	s.Require().NoError(s.store.Create(ctx, session))

	got, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, got.ID)
	s.Equal(session.WidgetID, got.WidgetID)
	s.Equal(models.PurposeGuardian, got.Purpose)
	s.Equal(session.LinkID, got.LinkID)
	s.Equal(models.SessionStatusPending, got.Status)
	s.Nil(got.VerifiedAge)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMarkOutcomeVerified() {
	ctx := context.Background()
	session := newPendingSession()
	s.Require().NoError(s.store.Create(ctx, session))

	age := 34
	s.Require().NoError(s.store.MarkOutcome(ctx, session.ID, models.SessionStatusVerified, &age, ""))

	got, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusVerified, got.Status)
	s.Require().NotNil(got.VerifiedAge)
	s.Equal(34, *got.VerifiedAge)
	s.Empty(got.FailureReason)
}

func (s *PostgresStoreSuite) TestMarkOutcomeFailedKeepsNoAge() {
	ctx := context.Background()
	session := newPendingSession()
	s.Require().NoError(s.store.Create(ctx, session))

	s.Require().NoError(s.store.MarkOutcome(ctx, session.ID, models.SessionStatusFailed, nil, "below_threshold"))

	got, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusFailed, got.Status)
	s.Nil(got.VerifiedAge)
	s.Equal("below_threshold", got.FailureReason)
}

func (s *PostgresStoreSuite) TestMarkOutcomeTerminalIsFinal() {
	ctx := context.Background()
	session := newPendingSession()
	s.Require().NoError(s.store.Create(ctx, session))

	s.Require().NoError(s.store.MarkOutcome(ctx, session.ID, models.SessionStatusFailed, nil, "exchange_failed"))

	age := 40
	err := s.store.MarkOutcome(ctx, session.ID, models.SessionStatusVerified, &age, "")
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.Get(ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusFailed, got.Status)
	s.Nil(got.VerifiedAge)
}

func (s *PostgresStoreSuite) TestMarkOutcomeMissing() {
	err := s.store.MarkOutcome(context.Background(), domain.NewSessionID(), models.SessionStatusFailed, nil, "x")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentMarkOutcome verifies the status guard under contention: with
// many writers racing on one pending session, exactly one lands.
func (s *PostgresStoreSuite) TestConcurrentMarkOutcome() {
	ctx := context.Background()
	session := newPendingSession()
	s.Require().NoError(s.store.Create(ctx, session))

	const goroutines = 16
	var wg sync.WaitGroup
	var successCount atomic.Int32
	var invalidCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			age := 20 + n
			err := s.store.MarkOutcome(ctx, session.ID, models.SessionStatusVerified, &age, "")
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				invalidCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one outcome should land")
	s.Equal(int32(goroutines-1), invalidCount.Load())
}

func (s *PostgresStoreSuite) TestExpireStale() {
	ctx := context.Background()
	now := time.Now()

	overdue := newPendingSession()
	overdue.ExpiresAt = now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(ctx, overdue))

	fresh := newPendingSession()
	s.Require().NoError(s.store.Create(ctx, fresh))

	terminal := newPendingSession()
	terminal.ExpiresAt = now.Add(-time.Minute)
	s.Require().NoError(s.store.Create(ctx, terminal))
	s.Require().NoError(s.store.MarkOutcome(ctx, terminal.ID, models.SessionStatusVerified, nil, ""))

	expired, err := s.store.ExpireStale(ctx, now)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(overdue.ID, expired[0])

	got, err := s.store.Get(ctx, overdue.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusExpired, got.Status)

	// A second pass matches nothing.
	expired, err = s.store.ExpireStale(ctx, now)
	s.Require().NoError(err)
	s.Empty(expired)
}
