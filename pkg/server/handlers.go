package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
	"github.com/ihainan/scholar-data-proxy/pkg/resolver"
)

// scholarIDPattern bounds what we accept as a scholar id before it becomes
// a cache key or an upstream parameter.
var scholarIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// health reports liveness.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "scholar-data-proxy",
	})
}

// scholarDetail serves GET /api/aminer/scholar/detail.
func (s *Server) scholarDetail(w http.ResponseWriter, r *http.Request) {
	id, force, err := scholarQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	creds, err := credentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.details.Resolve(r.Context(), id, creds, force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Only the official shape leaves the service; the raw payload is a
	// cache-internal companion.
	s.writeJSON(w, http.StatusOK, rec.Detail)
}

// scholarAvatar serves GET /api/aminer/scholar/avatar.
func (s *Server) scholarAvatar(w http.ResponseWriter, r *http.Request) {
	id, force, err := scholarQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.avatars.Resolve(r.Context(), id, force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImage(w, asset.Bytes, asset.ContentType)
}

// scholarEmail serves GET /api/aminer/scholar/email.
func (s *Server) scholarEmail(w http.ResponseWriter, r *http.Request) {
	id, force, err := scholarQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	format, err := resolver.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	creds, err := credentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	asset, err := s.emails.Resolve(r.Context(), id, creds, format, force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeImage(w, asset.Bytes, asset.ContentType)
}

// cacheClear serves POST /api/aminer/cache/clear, dropping every detail
// record.
func (s *Server) cacheClear(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.ClearNamespace(cache.NamespaceDetail)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info().Int("files_deleted", count).Msg("detail cache cleared")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"files_deleted": count,
	})
}

// warmRequest is the cache warm request body.
type warmRequest struct {
	IDs          []string `json:"ids"`
	ForceRefresh bool     `json:"force_refresh"`
}

// cacheWarm serves POST /api/aminer/cache/warm.
func (s *Server) cacheWarm(w http.ResponseWriter, r *http.Request) {
	var req warmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errdefs.Wrap(errdefs.KindValidation, err, "invalid warm request body"))
		return
	}
	if err := validation.Validate(req.IDs,
		validation.Required,
		validation.Length(1, 500),
		validation.Each(validation.Required, validation.Match(scholarIDPattern)),
	); err != nil {
		s.writeError(w, r, errdefs.Wrap(errdefs.KindValidation, err, "invalid scholar id list"))
		return
	}
	creds, err := credentials(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report := s.warmer.Warm(r.Context(), req.IDs, creds, req.ForceRefresh)
	s.writeJSON(w, http.StatusOK, report)
}

// scholarQuery extracts and validates the id and force_refresh query
// parameters shared by the scholar endpoints.
func scholarQuery(r *http.Request) (string, bool, error) {
	id := r.URL.Query().Get("id")
	if err := validation.Validate(id,
		validation.Required,
		validation.Length(1, 64),
		validation.Match(scholarIDPattern),
	); err != nil {
		return "", false, errdefs.Wrap(errdefs.KindValidation, err, "invalid scholar id")
	}

	force := false
	if raw := r.URL.Query().Get("force_refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return "", false, errdefs.New(errdefs.KindValidation, "invalid force_refresh value %q", raw)
		}
		force = parsed
	}
	return id, force, nil
}

// credentials extracts the provider credentials the caller must supply.
func credentials(r *http.Request) (aminer.Credentials, error) {
	creds := aminer.Credentials{
		Authorization: r.Header.Get("Authorization"),
		Signature:     r.Header.Get("X-Signature"),
		Timestamp:     r.Header.Get("X-Timestamp"),
	}
	if err := (validation.Errors{
		"Authorization": validation.Validate(creds.Authorization, validation.Required),
		"X-Signature":   validation.Validate(creds.Signature, validation.Required),
		"X-Timestamp":   validation.Validate(creds.Timestamp, validation.Required),
	}).Filter(); err != nil {
		return creds, errdefs.Wrap(errdefs.KindValidation, err, "missing provider credentials")
	}
	return creds, nil
}
