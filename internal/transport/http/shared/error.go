package shared

import (
	"errors"
	"net/http"

	dErrors "agegate/pkg/domain-errors"
)

// WriteError translates domain errors into HTTP responses. Messages pass
// through for client-caused failures; internal details never do.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status := StatusForCode(domainErr.Code)
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if status < http.StatusInternalServerError && domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, status, response)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// StatusForCode maps domain error codes to HTTP status codes.
func StatusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput,
		dErrors.CodeProtocol, dErrors.CodeClaims, dErrors.CodeInvalidRequest:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeInvalidGrant:
		return http.StatusConflict
	case dErrors.CodeUnauthorized, dErrors.CodeSignature, dErrors.CodeAudience:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeAccessDenied:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeProvider:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
