// Package shared holds the response helpers every handler uses.
package shared

import (
	"encoding/json"
	"io"
	"net/http"

	dErrors "agegate/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies. Nothing this service accepts is large.
const maxBodyBytes = 64 << 10

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// DecodeJSON reads a bounded JSON request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body")
	}
	return nil
}
