package server

import (
	"encoding/json"
	"net/http"

	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
)

// failureBody is the error envelope every failed request carries.
type failureBody struct {
	Detail string `json:"detail"`
}

// writeJSON serializes v with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response encode failed")
	}
}

// writeImage serves binary image bytes.
func (s *Server) writeImage(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("image write failed")
	}
}

// writeError maps an error kind onto its HTTP status and emits the failure
// envelope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errdefs.KindOf(err)
	status := statusFor(kind)

	s.logger.Warn().
		Str("path", r.URL.Path).
		Str("error_kind", string(kind)).
		Int("status", status).
		Err(err).
		Msg("request failed")

	s.writeJSON(w, status, failureBody{Detail: err.Error()})
}

// statusFor maps error kinds to HTTP statuses.
func statusFor(kind errdefs.Kind) int {
	switch kind {
	case errdefs.KindValidation:
		return http.StatusBadRequest
	case errdefs.KindNotFound:
		return http.StatusNotFound
	case errdefs.KindUpstream:
		return http.StatusBadGateway
	case errdefs.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		// Dependency failures and anything unclassified.
		return http.StatusInternalServerError
	}
}
