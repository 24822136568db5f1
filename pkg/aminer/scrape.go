package aminer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
)

const (
	// scanWindow is the buffer size above which the streamed page is
	// searched and trimmed, keeping memory bounded on large rendered pages.
	scanWindow = 1 << 20

	// scanTail is how much of the buffer is carried over after a trim, in
	// case a URL straddles a chunk boundary.
	scanTail = 10 * 1024
)

// sizeVariantSuffix matches the CDN's thumbnail suffix (!160, !80, ...)
// appended to avatar URLs; stripping it yields the full-resolution form.
var sizeVariantSuffix = regexp.MustCompile(`!\d+$`)

// scrapeRequest is the rendering scrape service request body.
type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor"`
}

// avatarURLPattern builds the CDN URL pattern for one scholar's avatar.
func (c *Client) avatarURLPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(
		regexp.QuoteMeta(c.cfg.AvatarCDNBaseURL) +
			`/upload/avatar/\d+/\d+/\d+/` + regexp.QuoteMeta(id) +
			`_\d+\.(?:png|jpg|jpeg)(?:!\d+)?`)
}

// DiscoverAvatarURL renders the scholar's profile page through the scrape
// service and scans the streamed response for the avatar CDN URL. It
// returns "" (and no error) when the page carries no matching URL, which
// the caller treats as a confirmed absence.
func (c *Client) DiscoverAvatarURL(ctx context.Context, id string) (string, error) {
	body, err := json.Marshal(scrapeRequest{
		URL:             fmt.Sprintf("%s/profile/%s", c.cfg.ProfileBaseURL, id),
		Formats:         []string{"html"},
		OnlyMainContent: false,
		WaitFor:         c.cfg.ScrapeWaitMillis,
	})
	if err != nil {
		return "", fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.ScrapeBaseURL+"/scrape", bytes.NewReader(body))
	if err != nil {
		return "", errdefs.Wrap(errdefs.KindUpstream, err, "build scrape request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.scrape.Do(req)
	upstreamRequestDuration.WithLabelValues("scrape").Observe(time.Since(start).Seconds())
	if err != nil {
		kind := classifyTransport(err)
		upstreamRequestsTotal.WithLabelValues("scrape", "error").Inc()
		upstreamErrorsTotal.WithLabelValues(string(kind)).Inc()
		return "", errdefs.Wrap(kind, err, "scrape request failed")
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues("scrape", strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		upstreamErrorsTotal.WithLabelValues(string(errdefs.KindUpstream)).Inc()
		return "", errdefs.New(errdefs.KindUpstream, "scrape service returned status %d", resp.StatusCode)
	}

	match, err := scanStream(resp.Body, c.avatarURLPattern(id))
	if err != nil {
		kind := classifyTransport(err)
		upstreamErrorsTotal.WithLabelValues(string(kind)).Inc()
		return "", errdefs.Wrap(kind, err, "read scrape stream")
	}
	if match == "" {
		c.logger.Info().Str("scholar_id", id).Msg("no avatar URL on profile page")
		return "", nil
	}

	url := sizeVariantSuffix.ReplaceAllString(match, "")
	c.logger.Info().Str("scholar_id", id).Str("url", url).Msg("discovered avatar URL")
	return url, nil
}

// scanStream incrementally searches r for re without buffering the whole
// stream. Once the buffer exceeds the scan window it is searched and
// trimmed to a small tail so a match spanning a chunk boundary is still
// found.
func scanStream(r io.Reader, re *regexp.Regexp) (string, error) {
	buf := make([]byte, 0, scanWindow+scanTail)
	chunk := make([]byte, 64*1024)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if len(buf) > scanWindow {
				if m := re.Find(buf); m != nil {
					return string(m), nil
				}
				buf = append(buf[:0], buf[len(buf)-scanTail:]...)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	if m := re.Find(buf); m != nil {
		return string(m), nil
	}
	return "", nil
}
