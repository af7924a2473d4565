// Package handler exposes the consent postback endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agegate/internal/platform/middleware"
	"agegate/internal/postback/models"
	"agegate/internal/postback/service"
	"agegate/internal/transport/http/shared"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// secretHeader carries the shared secret. On the postback endpoint the
// service checks it so a mismatch still leaves an artifact; on the artifact
// read endpoint it is a plain access gate.
const secretHeader = "X-Postback-Secret"

// Service is the postback flow the handler drives.
type Service interface {
	Receive(ctx context.Context, rawAssertion, presentedSecret, sourceIP string) (*service.Result, error)
	Artifact(ctx context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error)
}

// SecretChecker gates the endpoint.
type SecretChecker interface {
	CheckSecret(presented string) bool
}

type Handler struct {
	service Service
	secrets SecretChecker
	logger  *slog.Logger
}

func New(service Service, secrets SecretChecker, logger *slog.Logger) *Handler {
	return &Handler{service: service, secrets: secrets, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/postback/consent", h.HandlePostback)
	r.Get("/postback/artifacts/{id}", h.HandleGetArtifact)
}

// PostbackRequest carries the signed assertion.
type PostbackRequest struct {
	Assertion string `json:"assertion"`
}

// PostbackResponse acknowledges receipt. The artifact ID is returned even for
// rejected assertions: the record exists either way, and the signature_valid
// flag carries the verdict.
type PostbackResponse struct {
	ArtifactID     string `json:"artifact_id"`
	SignatureValid bool   `json:"signature_valid"`
	Applied        bool   `json:"applied"`
}

// HandlePostback receives one consent postback. The response is a plain
// acknowledgment regardless of the validation outcome; only a failure to
// record the artifact itself is an error, so the sender retries.
func (h *Handler) HandlePostback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PostbackRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Assertion == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "postback carries no assertion"))
		return
	}

	result, err := h.service.Receive(ctx, req.Assertion, r.Header.Get(secretHeader), middleware.ClientIP(r))
	if err != nil {
		h.logger.WarnContext(ctx, "postback not applied",
			"error", err, "request_id", middleware.GetRequestID(ctx))
		if result == nil {
			shared.WriteError(w, err)
			return
		}
	}

	shared.WriteJSON(w, http.StatusAccepted, &PostbackResponse{
		ArtifactID:     result.ArtifactID.String(),
		SignatureValid: result.SignatureValid,
		Applied:        result.Applied,
	})
}

// ArtifactResponse is the forensic view of one artifact. The raw assertion
// stays server-side.
type ArtifactResponse struct {
	ArtifactID     string `json:"artifact_id"`
	LinkID         string `json:"link_id,omitempty"`
	SubjectRef     string `json:"subject_ref,omitempty"`
	Action         string `json:"action,omitempty"`
	Issuer         string `json:"issuer,omitempty"`
	SignatureValid bool   `json:"signature_valid"`
	RejectReason   string `json:"reject_reason,omitempty"`
	ReceivedAt     string `json:"received_at"`
}

// HandleGetArtifact returns one recorded artifact.
func (h *Handler) HandleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if !h.secrets.CheckSecret(r.Header.Get(secretHeader)) {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "postback secret mismatch"))
		return
	}

	id, err := domain.ParseArtifactID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	artifact, err := h.service.Artifact(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := &ArtifactResponse{
		ArtifactID:     artifact.ID.String(),
		SubjectRef:     artifact.SubjectRef,
		Action:         string(artifact.Action),
		Issuer:         artifact.Issuer,
		SignatureValid: artifact.SignatureValid,
		RejectReason:   artifact.RejectReason,
		ReceivedAt:     artifact.ReceivedAt.UTC().Format(time.RFC3339),
	}
	if !artifact.LinkID.IsNil() {
		resp.LinkID = artifact.LinkID.String()
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
