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

// emailExt is the canonical positive record suffix in the email namespace.
// Every cached email image is a white-background PNG; other formats are
// derived at read time and never persisted.
const emailExt = ".png"

// Email resolves scholar email images through the cache. It depends on the
// detail cache: the provider's magic email path only exists inside a
// scholar's raw detail payload, so detail must be resolved first.
type Email struct {
	store       *cache.Store
	details     *Detail
	client      *aminer.Client
	ttl         time.Duration
	negativeTTL time.Duration
	group       singleflight.Group
	logger      zerolog.Logger
}

// NewEmail creates the email resolver.
func NewEmail(store *cache.Store, details *Detail, client *aminer.Client, ttl, negativeTTL time.Duration) *Email {
	return &Email{
		store:       store,
		details:     details,
		client:      client,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		logger:      logging.NewLogger("email-resolver"),
	}
}

// Resolve returns the scholar's email image in the requested format. A
// valid no-email marker or a detail payload without an email path fails
// with not-found; an uncached detail record fails with a dependency error
// before any network call. force bypasses the cached image and marker but
// not the detail-cache dependency.
func (r *Email) Resolve(ctx context.Context, id string, creds aminer.Credentials, format Format, force bool) (*Asset, error) {
	if id == "" {
		return nil, errdefs.New(errdefs.KindValidation, "scholar id is required")
	}

	png, err := r.resolvePNG(ctx, id, creds, force)
	if err != nil {
		return nil, err
	}

	data, contentType, err := EncodeAs(png, format)
	if err != nil {
		return nil, err
	}
	return &Asset{Bytes: data, ContentType: contentType}, nil
}

// resolvePNG returns the canonical white-background PNG, from cache or by
// fetching and converting the provider image.
func (r *Email) resolvePNG(ctx context.Context, id string, creds aminer.Credentials, force bool) ([]byte, error) {
	if !force {
		res := r.store.Lookup(cache.NamespaceEmail, id, cache.Query{
			Extensions:  []string{emailExt},
			TTL:         r.ttl,
			NegativeTTL: r.negativeTTL,
		})

		switch res.State {
		case cache.StateNegative:
			r.logger.Debug().Str("scholar_id", id).Msg("email confirmed absent")
			return nil, errdefs.New(errdefs.KindNotFound, "scholar %s has no email on file", id)

		case cache.StateFresh:
			data, err := r.store.ReadBytes(res.Path)
			if err == nil {
				return data, nil
			}
		}
	}

	png, err, _ := r.group.Do(id, func() (any, error) {
		return r.fetch(ctx, id, creds)
	})
	if err != nil {
		return nil, err
	}
	return png.([]byte), nil
}

// fetch obtains the magic email path from the detail cache, downloads the
// provider image, converts it to white-background PNG, and caches it.
func (r *Email) fetch(ctx context.Context, id string, creds aminer.Credentials) ([]byte, error) {
	rec, err := r.dependencyRecord(ctx, id, creds)
	if err != nil {
		return nil, err
	}

	person, ok := rec.Raw.FirstPerson()
	if !ok {
		return nil, errdefs.New(errdefs.KindDependency, "detail record for scholar %s has no person payload", id)
	}

	emailPath := person.EmailPath()
	if emailPath == "" {
		// Any previously cached image predates the email's removal from the
		// profile; drop it before marking the absence.
		if err := r.store.Remove(r.store.PathFor(cache.NamespaceEmail, id, emailExt)); err != nil {
			r.logger.Warn().Str("scholar_id", id).Err(err).Msg("stale email image remove failed")
		}
		if err := r.store.WriteMarker(cache.NamespaceEmail, id); err != nil {
			r.logger.Warn().Str("scholar_id", id).Err(err).Msg("no-email marker write failed")
		}
		r.logger.Info().Str("scholar_id", id).Msg("scholar profile carries no email")
		return nil, errdefs.New(errdefs.KindNotFound, "scholar %s has no email on file", id)
	}

	data, _, err := r.client.FetchEmailImage(ctx, emailPath, creds)
	if err != nil {
		return nil, err
	}

	png, err := FlattenWhite(data)
	if err != nil {
		return nil, err
	}

	if err := r.store.WriteBytes(r.store.PathFor(cache.NamespaceEmail, id, emailExt), png); err != nil {
		r.logger.Warn().Str("scholar_id", id).Err(err).Msg("email cache write failed")
	} else if err := r.store.ClearMarker(cache.NamespaceEmail, id); err != nil {
		r.logger.Warn().Str("scholar_id", id).Err(err).Msg("no-email marker clear failed")
	}

	r.logger.Info().
		Str("scholar_id", id).
		Int("bytes", len(png)).
		Msg("cached fresh email image")
	return png, nil
}

// dependencyRecord returns the cached detail record carrying the raw
// provider payload. The email resolver never fetches detail on its own: an
// absent record fails fast with a dependency error and no network call. The
// one exception is healing a record written before raw payloads were stored
// alongside details, which forces exactly one detail refresh.
func (r *Email) dependencyRecord(ctx context.Context, id string, creds aminer.Credentials) (*Record, error) {
	rec, err := r.details.Cached(id)
	if err != nil {
		return nil, errdefs.New(errdefs.KindDependency,
			"scholar %s data not cached; fetch scholar detail first", id)
	}

	if rec.Raw == nil {
		r.logger.Warn().Str("scholar_id", id).Msg("detail record lacks raw payload, forcing refresh")
		rec, err = r.details.Resolve(ctx, id, creds, true)
		if err != nil {
			if errdefs.IsKind(err, errdefs.KindValidation) || errdefs.IsKind(err, errdefs.KindNotFound) {
				return nil, err
			}
			return nil, errdefs.Wrap(errdefs.KindDependency, err, "refresh detail for scholar %s", id)
		}
		if rec.Raw == nil {
			return nil, errdefs.New(errdefs.KindDependency, "detail record for scholar %s lacks raw payload", id)
		}
	}
	return rec, nil
}
