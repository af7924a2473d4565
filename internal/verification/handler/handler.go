// Package handler exposes the verification flow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agegate/internal/platform/middleware"
	"agegate/internal/verification/models"
	"agegate/internal/verification/service"
	"agegate/internal/verification/token"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"

	"agegate/internal/transport/http/shared"
)

// Service is the verification flow the handler drives.
type Service interface {
	Begin(ctx context.Context, req service.BeginRequest) (*service.BeginResult, error)
	HandleCallback(ctx context.Context, stateToken, code string) (*service.CallbackResult, error)
	Get(ctx context.Context, id domain.SessionID) (*models.VerificationSession, error)
	Validate(tokenString string, widgetID domain.WidgetID) *token.Claims
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/verify/sessions", h.HandleBegin)
	r.Get("/verify/callback", h.HandleCallback)
	r.Get("/verify/sessions/{id}", h.HandleGetSession)
	r.Post("/verify/validate", h.HandleValidate)
}

// BeginRequest is the session initiation payload.
type BeginRequest struct {
	WidgetID string `json:"widget_id"`
	Provider string `json:"provider"`
	Purpose  string `json:"purpose,omitempty"`
	LinkID   string `json:"link_id,omitempty"`
}

// BeginResponse carries the redirect the widget sends the subject to.
type BeginResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// HandleBegin starts a verification session.
func (h *Handler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BeginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	begin, err := h.parseBegin(req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.service.Begin(ctx, *begin)
	if err != nil {
		h.logger.ErrorContext(ctx, "begin session failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, &BeginResponse{
		SessionID:   result.SessionID.String(),
		RedirectURL: result.RedirectURL,
	})
}

func (h *Handler) parseBegin(req BeginRequest) (*service.BeginRequest, error) {
	widgetID, err := domain.ParseWidgetID(req.WidgetID)
	if err != nil {
		return nil, err
	}
	provider, err := domain.ParseProvider(req.Provider)
	if err != nil {
		return nil, err
	}

	purpose := models.PurposeSelf
	var linkID domain.LinkID
	switch req.Purpose {
	case "", string(models.PurposeSelf):
	case string(models.PurposeGuardian):
		purpose = models.PurposeGuardian
		linkID, err = domain.ParseLinkID(req.LinkID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "guardian sessions require a valid link ID")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown purpose")
	}

	return &service.BeginRequest{
		WidgetID: widgetID,
		Provider: provider,
		Purpose:  purpose,
		LinkID:   linkID,
	}, nil
}

// CallbackResponse reports the redeemed outcome.
type CallbackResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Token     string `json:"token,omitempty"`
	LinkID    string `json:"link_id,omitempty"`
}

// HandleCallback receives the provider redirect. The state token redeems
// exactly once; a replay gets a protocol error with no provider traffic.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	if state == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeProtocol, "callback carries no state token"))
		return
	}
	// A provider denial arrives with an error instead of a code. The empty
	// code fails the exchange, which lands the session in failed with an
	// audit trail, exactly like any other unusable code.
	code := r.URL.Query().Get("code")

	result, err := h.service.HandleCallback(ctx, state, code)
	if err != nil {
		h.logger.WarnContext(ctx, "callback failed",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, callbackResponse(result))
}

func callbackResponse(result *service.CallbackResult) *CallbackResponse {
	resp := &CallbackResponse{
		SessionID: result.SessionID.String(),
		Status:    string(result.Status),
		Token:     result.Token,
	}
	if !result.LinkID.IsNil() {
		resp.LinkID = result.LinkID.String()
	}
	return resp
}

// SessionResponse is the polling view of a session. It never carries the
// verified age; status is all a widget needs.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Purpose   string `json:"purpose"`
	Provider  string `json:"provider"`
	LinkID    string `json:"link_id,omitempty"`
}

// HandleGetSession returns session status.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := &SessionResponse{
		SessionID: session.ID.String(),
		Status:    string(session.Status),
		Purpose:   string(session.Purpose),
		Provider:  string(session.Provider),
	}
	if !session.LinkID.IsNil() {
		resp.LinkID = session.LinkID.String()
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

// ValidateRequest asks whether a token is good for a widget.
type ValidateRequest struct {
	Token    string `json:"token"`
	WidgetID string `json:"widget_id"`
}

// ValidateResponse is deliberately sparse: invalid tokens get {"valid":
// false} and nothing else, whatever the reason.
type ValidateResponse struct {
	Valid     bool   `json:"valid"`
	IsAdult   bool   `json:"is_adult,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HandleValidate checks a verification token.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	widgetID, err := domain.ParseWidgetID(req.WidgetID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	claims := h.service.Validate(req.Token, widgetID)
	if claims == nil {
		shared.WriteJSON(w, http.StatusOK, &ValidateResponse{Valid: false})
		return
	}
	shared.WriteJSON(w, http.StatusOK, &ValidateResponse{
		Valid:     true,
		IsAdult:   claims.IsAdult,
		SessionID: claims.SessionID,
	})
}
