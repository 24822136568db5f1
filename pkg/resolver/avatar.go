package resolver

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
)

// avatarExts are the positive record suffixes in the avatar namespace, in
// lookup order.
var avatarExts = []string{".jpg", ".jpeg", ".png"}

// Asset is a resolved binary record ready to serve.
type Asset struct {
	Bytes       []byte
	ContentType string
}

// Avatar resolves scholar avatar images through the cache, discovering the
// CDN URL from the scholar's public profile page when nothing is cached.
type Avatar struct {
	store           *cache.Store
	client          *aminer.Client
	ttl             time.Duration
	negativeTTL     time.Duration
	placeholderSize int
	group           singleflight.Group
	logger          zerolog.Logger
}

// NewAvatar creates the avatar resolver. placeholderSize is the exact byte
// length of the provider's stock default avatar; a downloaded image of that
// size is treated as "no real avatar" and negative-cached.
func NewAvatar(store *cache.Store, client *aminer.Client, ttl, negativeTTL time.Duration, placeholderSize int) *Avatar {
	return &Avatar{
		store:           store,
		client:          client,
		ttl:             ttl,
		negativeTTL:     negativeTTL,
		placeholderSize: placeholderSize,
		logger:          logging.NewLogger("avatar-resolver"),
	}
}

// Resolve returns the scholar's avatar image. A valid default-avatar marker
// or a discovery that finds no avatar URL fails with not-found; transient
// discovery or download failures cache nothing. force bypasses both the
// positive record and the marker.
func (r *Avatar) Resolve(ctx context.Context, id string, force bool) (*Asset, error) {
	if id == "" {
		return nil, errdefs.New(errdefs.KindValidation, "scholar id is required")
	}

	if !force {
		res := r.store.Lookup(cache.NamespaceAvatar, id, cache.Query{
			Extensions:  avatarExts,
			TTL:         r.ttl,
			NegativeTTL: r.negativeTTL,
		})

		switch res.State {
		case cache.StateNegative:
			r.logger.Debug().Str("scholar_id", id).Msg("avatar confirmed absent")
			return nil, errdefs.New(errdefs.KindNotFound, "no avatar available for scholar %s", id)

		case cache.StateFresh:
			data, err := r.store.ReadBytes(res.Path)
			if err == nil {
				return &Asset{Bytes: data, ContentType: contentTypeForExt(filepath.Ext(res.Path))}, nil
			}
			// Record vanished between lookup and read; fall through to fetch.
		}
	}

	asset, err, _ := r.group.Do(id, func() (any, error) {
		return r.fetch(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return asset.(*Asset), nil
}

// fetch discovers, downloads, classifies, and caches one scholar's avatar.
func (r *Avatar) fetch(ctx context.Context, id string) (*Asset, error) {
	url, err := r.client.DiscoverAvatarURL(ctx, id)
	if err != nil {
		return nil, err
	}

	if url == "" {
		// The profile page renders without any avatar for this scholar; a
		// confirmed absence, not a failure.
		if err := r.store.WriteMarker(cache.NamespaceAvatar, id); err != nil {
			r.logger.Warn().Str("scholar_id", id).Err(err).Msg("default-avatar marker write failed")
		}
		r.logger.Info().Str("scholar_id", id).Msg("no avatar URL on profile page")
		return nil, errdefs.New(errdefs.KindNotFound, "no avatar available for scholar %s", id)
	}

	data, contentType, err := r.client.DownloadAsset(ctx, url)
	if err != nil {
		return nil, err
	}

	if len(data) == r.placeholderSize {
		if err := r.store.WriteMarker(cache.NamespaceAvatar, id); err != nil {
			r.logger.Warn().Str("scholar_id", id).Err(err).Msg("default-avatar marker write failed")
		}
		r.logger.Info().
			Str("scholar_id", id).
			Int("bytes", len(data)).
			Msg("downloaded avatar matches stock placeholder size")
		return nil, errdefs.New(errdefs.KindNotFound, "no avatar available for scholar %s", id)
	}

	ext := extensionFor(contentType, url)
	if err := r.store.WriteBytes(r.store.PathFor(cache.NamespaceAvatar, id, ext), data); err != nil {
		r.logger.Warn().Str("scholar_id", id).Err(err).Msg("avatar cache write failed")
	} else if err := r.store.ClearMarker(cache.NamespaceAvatar, id); err != nil {
		r.logger.Warn().Str("scholar_id", id).Err(err).Msg("default-avatar marker clear failed")
	}

	r.logger.Info().
		Str("scholar_id", id).
		Str("url", url).
		Int("bytes", len(data)).
		Msg("cached fresh avatar")
	return &Asset{Bytes: data, ContentType: contentTypeForExt(ext)}, nil
}

// contentTypeForExt maps a cached record suffix back to its MIME type.
func contentTypeForExt(ext string) string {
	if ext == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// extensionFor picks the record suffix for a downloaded avatar, preferring
// the response content type over the URL.
func extensionFor(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	}
	ext := strings.ToLower(filepath.Ext(url))
	for _, known := range avatarExts {
		if ext == known {
			return ext
		}
	}
	return ".jpg"
}
