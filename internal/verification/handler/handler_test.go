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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/internal/verification/models"
	"agegate/internal/verification/service"
	"agegate/internal/verification/token"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// stubService scripts each operation.
type stubService struct {
	beginResult    *service.BeginResult
	beginErr       error
	beginReq       service.BeginRequest
	callbackResult *service.CallbackResult
	callbackErr    error
	session        *models.VerificationSession
	sessionErr     error
	claims         *token.Claims
}

func (s *stubService) Begin(_ context.Context, req service.BeginRequest) (*service.BeginResult, error) {
	s.beginReq = req
	return s.beginResult, s.beginErr
}

func (s *stubService) HandleCallback(context.Context, string, string) (*service.CallbackResult, error) {
	return s.callbackResult, s.callbackErr
}

func (s *stubService) Get(context.Context, domain.SessionID) (*models.VerificationSession, error) {
	return s.session, s.sessionErr
}

func (s *stubService) Validate(string, domain.WidgetID) *token.Claims {
	return s.claims
}

func newRouter(svc *stubService) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func postJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleBegin(t *testing.T) {
	sessionID := domain.NewSessionID()
	svc := &stubService{beginResult: &service.BeginResult{
		SessionID:   sessionID,
		RedirectURL: "https://issuer.example/authorize?state=abc",
	}}
	r := newRouter(svc)

	rec := postJSON(t, r, "/verify/sessions", BeginRequest{
		WidgetID: "shop-checkout",
		Provider: "direct",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp BeginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sessionID.String(), resp.SessionID)
	assert.NotEmpty(t, resp.RedirectURL)

	assert.Equal(t, models.PurposeSelf, svc.beginReq.Purpose)
	assert.Equal(t, domain.ProviderDirect, svc.beginReq.Provider)
}

func TestHandleBegin_GuardianPurpose(t *testing.T) {
	linkID := domain.NewLinkID()
	svc := &stubService{beginResult: &service.BeginResult{
		SessionID:   domain.NewSessionID(),
		RedirectURL: "https://issuer.example/authorize",
	}}
	r := newRouter(svc)

	rec := postJSON(t, r, "/verify/sessions", BeginRequest{
		WidgetID: "shop-checkout",
		Provider: "broker",
		Purpose:  "guardian",
		LinkID:   linkID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.PurposeGuardian, svc.beginReq.Purpose)
	assert.Equal(t, linkID, svc.beginReq.LinkID)
}

func TestHandleBegin_Invalid(t *testing.T) {
	svc := &stubService{}
	r := newRouter(svc)

	tests := []struct {
		name string
		req  BeginRequest
	}{
		{"bad widget", BeginRequest{WidgetID: "x", Provider: "direct"}},
		{"bad provider", BeginRequest{WidgetID: "shop-checkout", Provider: "saml"}},
		{"guardian without link", BeginRequest{WidgetID: "shop-checkout", Provider: "direct", Purpose: "guardian"}},
		{"unknown purpose", BeginRequest{WidgetID: "shop-checkout", Provider: "direct", Purpose: "parent"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, r, "/verify/sessions", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleCallback(t *testing.T) {
	sessionID := domain.NewSessionID()
	svc := &stubService{callbackResult: &service.CallbackResult{
		SessionID: sessionID,
		Status:    models.SessionStatusVerified,
		Token:     "signed-token",
	}}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/verify/callback?state=abc&code=xyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "verified", resp.Status)
	assert.Equal(t, "signed-token", resp.Token)
	assert.Empty(t, resp.LinkID)
}

func TestHandleCallback_MissingState(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/verify/callback?code=xyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCallback_ReplayedState(t *testing.T) {
	svc := &stubService{callbackErr: dErrors.New(dErrors.CodeProtocol, "unknown, expired, or already used state token")}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/verify/callback?state=used&code=xyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSession(t *testing.T) {
	sessionID := domain.NewSessionID()
	linkID := domain.NewLinkID()
	svc := &stubService{session: &models.VerificationSession{
		ID:       sessionID,
		WidgetID: "shop-checkout",
		Provider: domain.ProviderDirect,
		Purpose:  models.PurposeSelf,
		LinkID:   linkID,
		Status:   models.SessionStatusFailed,
	}}
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/verify/sessions/"+sessionID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, linkID.String(), resp.LinkID)
	// The response never carries an age.
	assert.NotContains(t, rec.Body.String(), "age")
}

func TestHandleGetSession_BadID(t *testing.T) {
	r := newRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/verify/sessions/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValidate(t *testing.T) {
	sessionID := domain.NewSessionID()
	svc := &stubService{claims: &token.Claims{
		IsAdult:   true,
		SessionID: sessionID.String(),
		WidgetID:  "shop-checkout",
	}}
	r := newRouter(svc)

	rec := postJSON(t, r, "/verify/validate", ValidateRequest{Token: "tok", WidgetID: "shop-checkout"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.True(t, resp.IsAdult)
	assert.Equal(t, sessionID.String(), resp.SessionID)
}

func TestHandleValidate_Invalid(t *testing.T) {
	r := newRouter(&stubService{claims: nil})

	rec := postJSON(t, r, "/verify/validate", ValidateRequest{Token: "bad", WidgetID: "shop-checkout"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.False(t, resp.IsAdult)
	assert.Empty(t, resp.SessionID)
}
