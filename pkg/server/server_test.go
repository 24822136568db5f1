package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihainan/scholar-data-proxy/internal/testutil"
	"github.com/ihainan/scholar-data-proxy/pkg/aminer"
	"github.com/ihainan/scholar-data-proxy/pkg/cache"
	"github.com/ihainan/scholar-data-proxy/pkg/prefetch"
	"github.com/ihainan/scholar-data-proxy/pkg/resolver"
)

const testScholarID = "53f42f36dabfaedce54dcd0c"

type env struct {
	mock  *testutil.MockUpstream
	store *cache.Store
	proxy *httptest.Server
}

func newServerEnv(t *testing.T) *env {
	t.Helper()

	mock := testutil.NewMockUpstream()
	t.Cleanup(mock.Close)

	store, err := cache.New(t.TempDir())
	require.NoError(t, err)

	cfg := aminer.DefaultConfig()
	cfg.BaseURL = mock.URL()
	cfg.ProfileBaseURL = mock.URL()
	cfg.ScrapeBaseURL = mock.URL() + "/v1"
	cfg.AvatarCDNBaseURL = mock.URL()
	cfg.APITimeout = 2 * time.Second
	cfg.ScrapeTimeout = 2 * time.Second
	cfg.DownloadTimeout = 2 * time.Second
	cfg.RetryDelay = 10 * time.Millisecond
	client := aminer.New(cfg)

	details := resolver.NewDetail(store, client, time.Hour)
	avatars := resolver.NewAvatar(store, client, time.Hour, time.Hour, 1676)
	emails := resolver.NewEmail(store, details, client, time.Hour, time.Hour)
	warmer := prefetch.NewWarmer(details, prefetch.Config{Concurrency: 2, Timeout: 2 * time.Second})

	srv := New(store, details, avatars, emails, warmer, nil)
	proxy := httptest.NewServer(srv.Handler())
	t.Cleanup(proxy.Close)

	return &env{mock: mock, store: store, proxy: proxy}
}

// get issues a GET with the full credential header set.
func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.proxy.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-Signature", "sig")
	req.Header.Set("X-Timestamp", "1700000000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	e := newServerEnv(t)

	resp, err := http.Get(e.proxy.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "scholar-data-proxy", body["service"])
}

func TestMetricsEndpoint(t *testing.T) {
	e := newServerEnv(t)

	resp, err := http.Get(e.proxy.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "go_goroutines")
}

func TestScholarDetail(t *testing.T) {
	e := newServerEnv(t)

	resp := e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, float64(200), body["code"])
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, testScholarID, data["id"])

	// The raw provider payload never leaves the service.
	assert.NotContains(t, string(raw), "raw_response")
}

func TestScholarDetail_Validation(t *testing.T) {
	e := newServerEnv(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "missing id", path: "/api/aminer/scholar/detail"},
		{name: "bad id charset", path: "/api/aminer/scholar/detail?id=../etc"},
		{name: "bad force_refresh", path: "/api/aminer/scholar/detail?id=abc&force_refresh=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.get(t, tt.path)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestScholarDetail_MissingCredentials(t *testing.T) {
	e := newServerEnv(t)

	resp, err := http.Get(e.proxy.URL + "/api/aminer/scholar/detail?id=" + testScholarID)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScholarDetail_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		response   testutil.MockResponse
		wantStatus int
	}{
		{
			name: "unknown scholar is 404",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       testutil.PersonNotFoundPayload("no such person"),
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "provider failure is 502",
			response:   testutil.MockResponse{StatusCode: http.StatusInternalServerError},
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "provider timeout is 504",
			response: testutil.MockResponse{
				StatusCode: http.StatusOK,
				Body:       testutil.PersonPayload(testScholarID, "Ada"),
				Delay:      3 * time.Second,
			},
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServerEnv(t)
			e.mock.SetResponse("person", tt.response)

			resp := e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestScholarDetail_ForceRefresh(t *testing.T) {
	e := newServerEnv(t)

	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)
	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)
	assert.Equal(t, 1, e.mock.RequestCount("person"))

	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID+"&force_refresh=true")
	assert.Equal(t, 2, e.mock.RequestCount("person"))
}

func TestScholarAvatar(t *testing.T) {
	e := newServerEnv(t)

	resp := e.get(t, "/api/aminer/scholar/avatar?id="+testScholarID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestScholarAvatar_AbsentIs404(t *testing.T) {
	e := newServerEnv(t)
	e.mock.SetResponse("scrape", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.ScrapePayload(""),
	})

	resp := e.get(t, "/api/aminer/scholar/avatar?id="+testScholarID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestScholarEmail(t *testing.T) {
	e := newServerEnv(t)

	// The email endpoint requires a cached detail record.
	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)

	t.Run("default png", func(t *testing.T) {
		resp := e.get(t, "/api/aminer/scholar/email?id="+testScholarID)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})

	t.Run("jpg derived", func(t *testing.T) {
		resp := e.get(t, "/api/aminer/scholar/email?id="+testScholarID+"&format=jpg")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	})

	t.Run("unsupported format", func(t *testing.T) {
		resp := e.get(t, "/api/aminer/scholar/email?id="+testScholarID+"&format=gif")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestScholarEmail_DetailNotCachedIs500(t *testing.T) {
	e := newServerEnv(t)

	// Without a cached detail record the email endpoint fails fast; the
	// provider is never contacted.
	resp := e.get(t, "/api/aminer/scholar/email?id="+testScholarID)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["detail"], "not cached")
	assert.Equal(t, 0, e.mock.RequestCount("person"))
	assert.Equal(t, 0, e.mock.RequestCount("email"))
}

func TestMetricsUseRoutePattern(t *testing.T) {
	e := newServerEnv(t)

	// Two requests for distinct unroutable paths must collapse into one
	// metrics label.
	e.get(t, "/no/such/path/1")
	e.get(t, "/no/such/path/2")

	resp, err := http.Get(e.proxy.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `path="unmatched"`)
	assert.NotContains(t, string(data), "/no/such/path/1")
	assert.NotContains(t, string(data), "/no/such/path/2")
}

func TestCacheClear(t *testing.T) {
	e := newServerEnv(t)

	// Populate the detail cache first.
	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)

	resp, err := http.Post(e.proxy.URL+"/api/aminer/cache/clear", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["files_deleted"])

	// The next detail request goes back upstream.
	e.get(t, "/api/aminer/scholar/detail?id="+testScholarID)
	assert.Equal(t, 2, e.mock.RequestCount("person"))
}

func TestCacheWarm(t *testing.T) {
	e := newServerEnv(t)

	req, err := http.NewRequest(http.MethodPost, e.proxy.URL+"/api/aminer/cache/warm",
		strings.NewReader(`{"ids":["`+testScholarID+`","abc123"]}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("X-Signature", "sig")
	req.Header.Set("X-Timestamp", "1700000000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["requested"])
	assert.Equal(t, float64(2), body["warmed"])
}

func TestCacheWarm_Validation(t *testing.T) {
	e := newServerEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"ids": [`},
		{name: "empty id list", body: `{"ids": []}`},
		{name: "blank id", body: `{"ids": [""]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, e.proxy.URL+"/api/aminer/cache/warm",
				strings.NewReader(tt.body))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer tok")
			req.Header.Set("X-Signature", "sig")
			req.Header.Set("X-Timestamp", "1700000000")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestStatusForMapsAllKinds(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor("validation"))
	assert.Equal(t, http.StatusNotFound, statusFor("not_found"))
	assert.Equal(t, http.StatusBadGateway, statusFor("upstream"))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor("timeout"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("dependency"))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
