package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/internal/guardian/models"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

type stubService struct {
	link      *models.GuardianConsentLink
	getErr    error
	decideErr error
	decided   *bool
}

func (s *stubService) Get(context.Context, domain.LinkID) (*models.GuardianConsentLink, error) {
	return s.link, s.getErr
}

func (s *stubService) Decide(_ context.Context, _ domain.LinkID, approve bool) error {
	s.decided = &approve
	return s.decideErr
}

func newRouter(svc *stubService) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHandleGetLink(t *testing.T) {
	linkID := domain.NewLinkID()
	decidedAt := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	svc := &stubService{link: &models.GuardianConsentLink{
		ID:        linkID,
		WidgetID:  "shop-checkout",
		Status:    models.LinkStatusApproved,
		ExpiresAt: decidedAt.Add(12 * time.Hour),
		DecidedAt: &decidedAt,
	}}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/guardian/links/"+linkID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "approved", resp.Status)
	assert.Equal(t, "2026-08-30T12:00:00Z", resp.DecidedAt)
}

func TestHandleGetLink_NotFound(t *testing.T) {
	svc := &stubService{getErr: dErrors.New(dErrors.CodeNotFound, "consent link not found")}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/guardian/links/"+domain.NewLinkID().String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDecide(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc)

	body, _ := json.Marshal(DecideRequest{Approve: true})
	req := httptest.NewRequest(http.MethodPost, "/guardian/links/"+domain.NewLinkID().String()+"/decision", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.decided)
	assert.True(t, *svc.decided)
}

func TestHandleDecide_BeforeGuardianVerified(t *testing.T) {
	svc := &stubService{decideErr: dErrors.New(dErrors.CodeInvalidInput, "guardian has not verified yet")}
	r := newRouter(svc)

	body, _ := json.Marshal(DecideRequest{Approve: true})
	req := httptest.NewRequest(http.MethodPost, "/guardian/links/"+domain.NewLinkID().String()+"/decision", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDecide_AlreadyDecided(t *testing.T) {
	svc := &stubService{decideErr: dErrors.New(dErrors.CodeConflict, "consent link already decided")}
	r := newRouter(svc)

	body, _ := json.Marshal(DecideRequest{Approve: false})
	req := httptest.NewRequest(http.MethodPost, "/guardian/links/"+domain.NewLinkID().String()+"/decision", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleDecide_BadLinkID(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/guardian/links/nope/decision", bytes.NewReader([]byte(`{"approve":true}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
