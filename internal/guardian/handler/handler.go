// Package handler exposes guardian consent links over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agegate/internal/guardian/models"
	"agegate/internal/platform/middleware"
	"agegate/internal/transport/http/shared"
	"agegate/pkg/domain"
)

// Service is the consent flow the handler drives.
type Service interface {
	Get(ctx context.Context, id domain.LinkID) (*models.GuardianConsentLink, error)
	Decide(ctx context.Context, linkID domain.LinkID, approve bool) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/guardian/links/{id}", h.HandleGetLink)
	r.Post("/guardian/links/{id}/decision", h.HandleDecide)
}

// LinkResponse is the polling view of a consent link.
type LinkResponse struct {
	LinkID    string `json:"link_id"`
	Status    string `json:"status"`
	WidgetID  string `json:"widget_id"`
	ExpiresAt string `json:"expires_at"`
	DecidedAt string `json:"decided_at,omitempty"`
}

// HandleGetLink returns consent link status.
func (h *Handler) HandleGetLink(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseLinkID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	link, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := &LinkResponse{
		LinkID:    link.ID.String(),
		Status:    string(link.Status),
		WidgetID:  link.WidgetID.String(),
		ExpiresAt: link.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if link.DecidedAt != nil {
		resp.DecidedAt = link.DecidedAt.UTC().Format(time.RFC3339)
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

// DecideRequest carries the guardian's explicit decision.
type DecideRequest struct {
	Approve bool `json:"approve"`
}

// HandleDecide records the decision. Verification alone never approves the
// minor; this call does.
func (h *Handler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseLinkID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req DecideRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Decide(ctx, id, req.Approve); err != nil {
		h.logger.WarnContext(ctx, "consent decision failed",
			"error", err, "link_id", id.String(), "request_id", middleware.GetRequestID(ctx))
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]string{"link_id": id.String()})
}
