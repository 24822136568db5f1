package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
)

// detailExt is the positive record suffix in the detail namespace.
const detailExt = ".json"

// Record is the on-disk detail cache shape: the official response served to
// clients plus the raw provider payload the email resolver extracts the
// magic path from.
type Record struct {
	aminer.Detail

	Raw *aminer.PersonResponse `json:"raw_response,omitempty"`
}

// Detail resolves normalized scholar detail records through the cache.
type Detail struct {
	store  *cache.Store
	client *aminer.Client
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

// NewDetail creates the detail resolver. ttl is the positive record validity
// window; detail records are never negative-cached, so a not-found scholar
// is re-asked on every request.
func NewDetail(store *cache.Store, client *aminer.Client, ttl time.Duration) *Detail {
	return &Detail{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logging.NewLogger("detail-resolver"),
	}
}

// Resolve returns the scholar's detail record, from cache when a fresh
// record exists and from the provider otherwise. force bypasses the cache
// entirely. A valid cached record is served verbatim even when it predates
// raw payload storage; the email resolver heals such records with a forced
// refresh when it actually needs the raw payload.
func (r *Detail) Resolve(ctx context.Context, id string, creds aminer.Credentials, force bool) (*Record, error) {
	if id == "" {
		return nil, errdefs.New(errdefs.KindValidation, "scholar id is required")
	}

	if !force {
		res := r.store.Lookup(cache.NamespaceDetail, id, cache.Query{
			Extensions: []string{detailExt},
			TTL:        r.ttl,
		})
		if res.State == cache.StateFresh {
			var rec Record
			if err := r.store.ReadJSON(res.Path, &rec); err == nil {
				r.logger.Debug().
					Str("scholar_id", id).
					Str("cache_state", res.State.String()).
					Msg("serving cached detail")
				return &rec, nil
			}
		}
	}

	rec, err, _ := r.group.Do(id, func() (any, error) {
		return r.refresh(ctx, id, creds)
	})
	if err != nil {
		return nil, err
	}
	return rec.(*Record), nil
}

// Cached returns the detail record currently on disk regardless of age, or
// ErrMiss when none exists. The email resolver uses this for its
// detail-cache dependency.
func (r *Detail) Cached(id string) (*Record, error) {
	var rec Record
	if err := r.store.ReadJSON(r.store.PathFor(cache.NamespaceDetail, id, detailExt), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// refresh fetches, normalizes, and caches one scholar's detail. A scholar
// the provider reports as unknown fails with not-found and caches nothing.
func (r *Detail) refresh(ctx context.Context, id string, creds aminer.Credentials) (*Record, error) {
	resp, err := r.client.FetchPerson(ctx, id, creds)
	if err != nil {
		return nil, err
	}

	if result, ok := resp.FirstResult(); ok && result.Failed() {
		r.logger.Info().
			Str("scholar_id", id).
			Int("provider_code", result.Code).
			Str("context", result.FailureContext()).
			Msg("provider reports scholar not found")
		return nil, errdefs.New(errdefs.KindNotFound, "scholar %s not found", id)
	}

	detail, err := aminer.Normalize(resp)
	if err != nil {
		return nil, err
	}

	rec := &Record{Detail: *detail, Raw: resp}
	if err := r.store.WriteJSON(r.store.PathFor(cache.NamespaceDetail, id, detailExt), rec); err != nil {
		// Serve the fetched record anyway; the next request re-fetches.
		r.logger.Warn().Str("scholar_id", id).Err(err).Msg("detail cache write failed")
	} else {
		r.logger.Info().Str("scholar_id", id).Msg("cached fresh detail record")
	}
	return rec, nil
}
