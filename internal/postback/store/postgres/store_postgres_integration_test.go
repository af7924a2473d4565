//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"agegate/internal/postback/models"
	"agegate/internal/postback/store/postgres"
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
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "consent_artifacts"))
}

func newValidArtifact(linkID domain.LinkID, receivedAt time.Time) *models.ConsentArtifact {
	return &models.ConsentArtifact{
		ID:             domain.NewArtifactID(),
		LinkID:         linkID,
		SubjectRef:     "subject-ref-abc",
		Action:         models.ActionGranted,
		Issuer:         "https://consent.example",
		KeyID:          "consent-key-1",
		SignatureValid: true,
		RawAssertion:   "header.payload.signature",
		SourceIP:       "203.0.113.7",
		ReceivedAt:     receivedAt,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	artifact := newValidArtifact(domain.NewLinkID(), time.Now())
	s.Require().NoError(s.store.Create(ctx, artifact))

	got, err := s.store.Get(ctx, artifact.ID)
	s.Require().NoError(err)
	s.Equal(artifact.ID, got.ID)
	s.Equal(artifact.LinkID, got.LinkID)
	s.Equal(models.ActionGranted, got.Action)
	s.Equal(artifact.RawAssertion, got.RawAssertion)
	s.True(got.SignatureValid)
	s.Empty(got.RejectReason)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.NewArtifactID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestCreateRejectedArtifact covers the record-everything contract: a reject
// has no link, no claims, only the raw assertion and the reason.
func (s *PostgresStoreSuite) TestCreateRejectedArtifact() {
	ctx := context.Background()
	artifact := &models.ConsentArtifact{
		ID:           domain.NewArtifactID(),
		RejectReason: "signature",
		RawAssertion: "garbage-assertion",
		SourceIP:     "198.51.100.9",
		ReceivedAt:   time.Now(),
	}
	s.Require().NoError(s.store.Create(ctx, artifact))

	got, err := s.store.Get(ctx, artifact.ID)
	s.Require().NoError(err)
	s.True(got.LinkID.IsNil())
	s.False(got.SignatureValid)
	s.Equal("signature", got.RejectReason)
	s.Equal("garbage-assertion", got.RawAssertion)
}

func (s *PostgresStoreSuite) TestListByLinkOrdered() {
	ctx := context.Background()
	linkID := domain.NewLinkID()
	base := time.Now().Add(-time.Hour)

	second := newValidArtifact(linkID, base.Add(time.Minute))
	first := newValidArtifact(linkID, base)
	other := newValidArtifact(domain.NewLinkID(), base)

	s.Require().NoError(s.store.Create(ctx, second))
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, other))

	got, err := s.store.ListByLink(ctx, linkID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.ID, got[0].ID)
	s.Equal(second.ID, got[1].ID)
}
