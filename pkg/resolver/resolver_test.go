package resolver

import (
	"os"
	"testing"
	"time"

	"github.com/ihainan/scholar-data-proxy/internal/testutil"
	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
)

const testScholarID = "53f42f36dabfaedce54dcd0c"

// newEnv builds a cache store in a temp dir and an upstream client pointed
// at a fresh mock upstream.
func newEnv(t *testing.T) (*testutil.MockUpstream, *cache.Store, *aminer.Client) {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	store, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	cfg := aminer.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.ProfileBaseURL = mock.URL()
	cfg.ScrapeBaseURL = mock.URL() + "/v1"
	cfg.AvatarCDNBaseURL = mock.URL()
	cfg.APITimeout = 2 * time.Second
	cfg.ScrapeTimeout = 2 * time.Second
	cfg.DownloadTimeout = 2 * time.Second
	cfg.RetryDelay = 10 * time.Millisecond

	return mock, store, aminer.New(cfg)
}

// agePath backdates a cache file's modification time so TTL expiry can be
// tested without sleeping.
func agePath(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("age %s: %v", path, err)
	}
}
