package aminer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
	"github.com/ihainan/scholar-data-proxy/pkg/logging"
)

const (
	// personEndpoint is the magic action for scholar detail payloads.
	personEndpoint = "/magic?a=getPerson__personapi.get___"

	// browserUserAgent is sent on asset downloads; the CDN rejects obvious
	// non-browser clients.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Credentials are the caller-supplied provider credentials, forwarded
// verbatim. The proxy never issues its own.
type Credentials struct {
	Authorization string
	Signature     string
	Timestamp     string
}

// apply sets the credential headers on an outbound request.
func (c Credentials) apply(req *http.Request) {
	req.Header.Set("Authorization", c.Authorization)
	req.Header.Set("X-Signature", c.Signature)
	req.Header.Set("X-Timestamp", c.Timestamp)
}

// Config holds the upstream client configuration.
type Config struct {
	// BaseURL is the provider API host (person API and email images).
	BaseURL string

	// ProfileBaseURL is the public profile page host used for avatar
	// discovery.
	ProfileBaseURL string

	// ScrapeBaseURL is the rendering scrape service endpoint root.
	ScrapeBaseURL string

	// AvatarCDNBaseURL is the asset CDN host avatar URLs are discovered on.
	AvatarCDNBaseURL string

	// Timeout budgets, one per downstream target.
	APITimeout      time.Duration
	ScrapeTimeout   time.Duration
	DownloadTimeout time.Duration

	// RetryDelay is the fixed delay before the single inline retry of a
	// failed person API call.
	RetryDelay time.Duration

	// ScrapeWaitMillis is how long the scrape service waits for JavaScript
	// rendering before returning the page.
	ScrapeWaitMillis int
}

// DefaultConfig returns the production provider configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://apiv2.aminer.cn",
		ProfileBaseURL:   "https://www.aminer.cn",
		ScrapeBaseURL:    "https://firecrawl.ihainan.me/v1",
		AvatarCDNBaseURL: "https://avatarcdn.aminer.cn",
		APITimeout:       30 * time.Second,
		ScrapeTimeout:    180 * time.Second,
		DownloadTimeout:  30 * time.Second,
		RetryDelay:       5 * time.Second,
		ScrapeWaitMillis: 3000,
	}
}

// Client talks to the upstream provider. It holds one HTTP client per
// downstream target so timeout budgets stay independent.
type Client struct {
	api      *http.Client
	scrape   *http.Client
	download *http.Client
	cfg      Config
	logger   zerolog.Logger
}

// New creates an upstream client.
func New(cfg Config) *Client {
	return &Client{
		api:      &http.Client{Timeout: cfg.APITimeout},
		scrape:   &http.Client{Timeout: cfg.ScrapeTimeout},
		download: &http.Client{Timeout: cfg.DownloadTimeout},
		cfg:      cfg,
		logger:   logging.NewLogger("aminer-client"),
	}
}

// personRequest is the magic endpoint request envelope.
type personRequest struct {
	Action     string           `json:"action"`
	Parameters personParameters `json:"parameters"`
	Schema     personSchema     `json:"schema"`
}

type personParameters struct {
	IDs []string `json:"ids"`
}

type personSchema struct {
	Person []any `json:"person"`
}

// personSchemaFields mirrors the field list the web frontend requests. The
// provider only returns fields named here.
var personSchemaFields = []any{
	"id", "name", "name_zh", "avatar", "num_view", "is_follow",
	"work", "work_zh", "hide", "nation", "language", "bind",
	"acm_citations", "links", "educations", "tags", "tags_zh",
	"num_view", "num_follow", "is_upvoted", "num_upvoted",
	"is_downvoted", "is_lock",
	map[string][]string{"indices": {
		"hindex", "gindex", "pubs", "citations", "newStar", "risingStar",
		"activity", "diversity", "sociability",
	}},
	map[string][]string{"profile": {
		"position", "position_zh", "affiliation", "affiliation_zh",
		"work", "work_zh", "gender", "lang", "homepage", "phone", "email",
		"fax", "bio", "bio_zh", "edu", "edu_zh", "address", "note",
		"homepage", "title", "titles",
	}},
}

// FetchPerson fetches a scholar's raw detail payload from the person API,
// forwarding the caller's credentials. A transport failure or non-2xx
// response is retried exactly once after the configured fixed delay; a
// second failure surfaces as an upstream or timeout error.
func (c *Client) FetchPerson(ctx context.Context, id string, creds Credentials) (*PersonResponse, error) {
	payload, err := json.Marshal([]personRequest{{
		Action:     "personapi.get",
		Parameters: personParameters{IDs: []string{id}},
		Schema:     personSchema{Person: personSchemaFields},
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal person request: %w", err)
	}

	var body []byte
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+personEndpoint, bytes.NewReader(payload))
		if err != nil {
			return errdefs.Wrap(errdefs.KindUpstream, err, "build person request")
		}
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Content-Type", "application/json")
		creds.apply(req)

		body, err = c.exchange(c.api, req, "person")
		return err
	}

	if err := c.retryOnce(ctx, "person", id, attempt); err != nil {
		return nil, err
	}

	var resp PersonResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return nil, errdefs.Wrap(errdefs.KindUpstream, err, "malformed person payload")
	}

	c.logger.Info().Str("scholar_id", id).Msg("fetched person payload")
	return &resp, nil
}

// DownloadAsset fetches an image asset from the CDN. Failures are never
// retried here; the resolver caches nothing so the next request tries
// again.
func (c *Client) DownloadAsset(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", errdefs.Wrap(errdefs.KindUpstream, err, "build asset request")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", c.cfg.ProfileBaseURL+"/")

	start := time.Now()
	resp, err := c.download.Do(req)
	upstreamRequestDuration.WithLabelValues("download").Observe(time.Since(start).Seconds())
	if err != nil {
		kind := classifyTransport(err)
		upstreamRequestsTotal.WithLabelValues("download", "error").Inc()
		upstreamErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, "", errdefs.Wrap(kind, err, "asset download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		upstreamRequestsTotal.WithLabelValues("download", strconv.Itoa(resp.StatusCode)).Inc()
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return nil, "", errdefs.New(errdefs.KindUpstream, "asset download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return nil, "", errdefs.Wrap(errdefs.KindUpstream, err, "read asset body")
	}
	upstreamRequestsTotal.WithLabelValues("download", "200").Inc()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	c.logger.Info().
		Str("url", url).
		Int("bytes", len(data)).
		Str("content_type", contentType).
		Msg("downloaded asset")
	return data, contentType, nil
}

// FetchEmailImage fetches the email-as-image asset behind the path embedded
// in a scholar's detail payload. The path must be a provider magic path.
func (c *Client) FetchEmailImage(ctx context.Context, path string, creds Credentials) ([]byte, string, error) {
	if len(path) < len("/magic") || path[:len("/magic")] != "/magic" {
		return nil, "", errdefs.New(errdefs.KindValidation, "invalid email path format: %s", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, "", errdefs.Wrap(errdefs.KindUpstream, err, "build email image request")
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	req.Header.Set("Referer", c.cfg.ProfileBaseURL+"/")
	req.Header.Set("User-Agent", browserUserAgent)
	creds.apply(req)

	data, err := c.exchange(c.download, req, "email")
	if err != nil {
		return nil, "", err
	}

	contentType := "image/png"
	c.logger.Info().Int("bytes", len(data)).Msg("fetched email image")
	return data, contentType, nil
}

// exchange performs one HTTP round trip, records metrics, and classifies
// failures.
func (c *Client) exchange(hc *http.Client, req *http.Request, target string) ([]byte, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	upstreamRequestDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := classifyTransport(err)
		upstreamRequestsTotal.WithLabelValues(target, "error").Inc()
		upstreamErrorsTotal.WithLabelValues(string(kind)).Inc()
		return nil, errdefs.Wrap(kind, err, "%s request failed", target)
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(target, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return nil, errdefs.New(errdefs.KindUpstream, "%s returned status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return nil, errdefs.Wrap(errdefs.KindUpstream, err, "read %s body", target)
	}
	return data, nil
}

// retryOnce runs fn and, if it fails with an upstream or timeout kind,
// waits the fixed retry delay (respecting ctx) and runs it exactly once
// more. Other kinds surface immediately.
func (c *Client) retryOnce(ctx context.Context, target, id string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	kind := errdefs.KindOf(err)
	if kind != errdefs.KindUpstream && kind != errdefs.KindTimeout {
		return err
	}

	upstreamRetriesTotal.WithLabelValues(target).Inc()
	c.logger.Warn().
		Str("scholar_id", id).
		Str("error_kind", string(kind)).
		Dur("retry_delay", c.cfg.RetryDelay).
		Err(err).
		Msg("transient upstream failure, retrying once")

	select {
	case <-ctx.Done():
		return errdefs.Wrap(errdefs.KindUpstream, ctx.Err(), "retry cancelled")
	case <-time.After(c.cfg.RetryDelay):
	}

	if err := fn(); err != nil {
		c.logger.Error().
			Str("scholar_id", id).
			Err(err).
			Msg("upstream request failed after retry")
		return err
	}
	return nil
}

// classifyTransport distinguishes timeouts from other transport failures.
func classifyTransport(err error) errdefs.Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return errdefs.KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errdefs.KindTimeout
	}
	return errdefs.KindUpstream
}
