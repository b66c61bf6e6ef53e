package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"appraze/internal/transport/http/api"
)

// DecodeJSON reads a single JSON object into dst and writes the 400 or 413
// envelope itself on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		case errors.Is(err, io.EOF):
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "request body is required", requestID)
		default:
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid json payload", requestID)
		}
		return false
	}
	return true
}
