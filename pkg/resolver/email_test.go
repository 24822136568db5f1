package resolver

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihainan/scholar-data-proxy/internal/testutil"
	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
)

func newEmailResolver(store *cache.Store, client *aminer.Client) (*Email, *Detail) {
	details := NewDetail(store, client, time.Hour)
	return NewEmail(store, details, client, time.Hour, time.Hour), details
}

// cacheDetail populates the detail cache the way a prior detail request
// would.
func cacheDetail(t *testing.T, details *Detail, id string) {
	t.Helper()
	_, err := details.Resolve(context.Background(), id, aminer.Credentials{}, false)
	require.NoError(t, err)
}

func TestEmail_ResolveFetchesConvertsAndCaches(t *testing.T) {
	mock, store, client := newEnv(t)
	resolver, details := newEmailResolver(store, client)
	cacheDetail(t, details, testScholarID)

	asset, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)

	// The mock serves a fully transparent email image; the cached result
	// must be flattened onto white.
	img, _, err := image.Decode(bytes.NewReader(asset.Bytes))
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	// One detail fetch (the prior request), one email fetch.
	assert.Equal(t, 1, mock.RequestCount("person"))
	assert.Equal(t, 1, mock.RequestCount("email"))
	assert.FileExists(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".png"))

	// Second call is served from disk.
	_, err = resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RequestCount("email"))
}

func TestEmail_DetailNotCachedIsDependencyError(t *testing.T) {
	mock, store, client := newEnv(t)
	resolver, _ := newEmailResolver(store, client)

	// With nothing cached the resolver fails fast; it never fetches detail
	// on the caller's behalf.
	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindDependency), "err = %v", err)
	assert.Equal(t, 0, mock.RequestCount("person"), "no detail fetch on behalf of the caller")
	assert.Equal(t, 0, mock.RequestCount("email"))
}

func TestEmail_JPEGIsDerivedNotPersisted(t *testing.T) {
	_, store, client := newEnv(t)
	resolver, details := newEmailResolver(store, client)
	cacheDetail(t, details, testScholarID)

	asset, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatJPEG, false)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", asset.ContentType)

	_, format, err := image.Decode(bytes.NewReader(asset.Bytes))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	// Only the canonical PNG lives on disk.
	assert.FileExists(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".png"))
	assert.NoFileExists(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".jpg"))
}

func TestEmail_NoEmailOnProfileIsNegativeCached(t *testing.T) {
	mock, store, client := newEnv(t)
	mock.SetResponse("person", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.PersonPayloadNoEmail(testScholarID, "Ada Lovelace"),
	})
	resolver, details := newEmailResolver(store, client)
	cacheDetail(t, details, testScholarID)

	// A stale image from before the email disappeared must be dropped.
	require.NoError(t, store.WriteBytes(store.PathFor(cache.NamespaceEmail, testScholarID, ".png"), []byte("old")))
	agePath(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".png"), 2*time.Hour)

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindNotFound), "err = %v", err)
	assert.FileExists(t, store.MarkerPath(cache.NamespaceEmail, testScholarID))
	assert.NoFileExists(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".png"))

	// Marker short-circuits without touching upstream again.
	_, err = resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindNotFound))
	assert.Equal(t, 0, mock.RequestCount("email"))
}

func TestEmail_UsesCachedDetailRecord(t *testing.T) {
	mock, store, client := newEnv(t)
	resolver, details := newEmailResolver(store, client)

	cacheDetail(t, details, testScholarID)
	require.Equal(t, 1, mock.RequestCount("person"))

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RequestCount("person"), "cached detail should satisfy the dependency")
}

func TestEmail_LegacyDetailRecordForcesOneRefresh(t *testing.T) {
	mock, store, client := newEnv(t)
	resolver, _ := newEmailResolver(store, client)

	legacy := Record{Detail: aminer.Detail{Code: 200, Success: true}}
	legacy.Data.ID = testScholarID
	require.NoError(t, store.WriteJSON(store.PathFor(cache.NamespaceDetail, testScholarID, ".json"), &legacy))

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.RequestCount("person"), "legacy record should trigger exactly one forced refresh")
}

func TestEmail_LegacyRefreshFailureIsDependencyError(t *testing.T) {
	mock, store, client := newEnv(t)
	mock.SetResponse("person", testutil.MockResponse{StatusCode: http.StatusInternalServerError})
	resolver, _ := newEmailResolver(store, client)

	legacy := Record{Detail: aminer.Detail{Code: 200, Success: true}}
	legacy.Data.ID = testScholarID
	require.NoError(t, store.WriteJSON(store.PathFor(cache.NamespaceDetail, testScholarID, ".json"), &legacy))

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindDependency), "err = %v", err)
}

func TestEmail_LegacyRefreshNotFoundPassesThrough(t *testing.T) {
	mock, store, client := newEnv(t)
	mock.SetResponse("person", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.PersonNotFoundPayload("no such person"),
	})
	resolver, _ := newEmailResolver(store, client)

	legacy := Record{Detail: aminer.Detail{Code: 200, Success: true}}
	legacy.Data.ID = testScholarID
	require.NoError(t, store.WriteJSON(store.PathFor(cache.NamespaceDetail, testScholarID, ".json"), &legacy))

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindNotFound), "err = %v", err)
}

func TestEmail_ConversionFailureCachesNothing(t *testing.T) {
	mock, store, client := newEnv(t)
	mock.SetResponse("email", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "definitely not an image",
		Headers:    map[string]string{"Content-Type": "image/png"},
	})
	resolver, details := newEmailResolver(store, client)
	cacheDetail(t, details, testScholarID)

	_, err := resolver.Resolve(context.Background(), testScholarID, aminer.Credentials{}, FormatPNG, false)
	assert.True(t, errdefs.IsKind(err, errdefs.KindUpstream), "err = %v", err)
	assert.NoFileExists(t, store.PathFor(cache.NamespaceEmail, testScholarID, ".png"))
	assert.NoFileExists(t, store.MarkerPath(cache.NamespaceEmail, testScholarID))
}
