// Package testutil provides testing utilities for the scholar data proxy.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock upstream route.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockUpstream is a configurable stand-in for every downstream target the
// proxy talks to: the provider person API, the email-image endpoint, the
// scrape service, and the avatar CDN. Point all client base URLs at URL().
type MockUpstream struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Per-route request counters keyed by route name (person, email,
	// scrape, download).
	counts map[string]int

	// LastRequestHeader is the header set of the most recent request.
	LastRequestHeader http.Header
}

// NewMockUpstream creates a mock upstream serving sensible defaults for
// every route.
func NewMockUpstream() *MockUpstream {
	mock := &MockUpstream{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeOf(r)

		mock.mu.Lock()
		mock.counts[route]++
		mock.LastRequestHeader = r.Header.Clone()
		handler := mock.handlers[route]
		mock.mu.Unlock()

		if handler != nil {
			handler(w, r)
			return
		}
		mock.defaultHandler(route, w, r)
	}))

	return mock
}

// routeOf classifies an incoming request into one of the proxy's downstream
// targets.
func routeOf(r *http.Request) string {
	switch {
	case strings.HasPrefix(r.URL.Path, "/magic") && r.Method == http.MethodPost:
		return "person"
	case strings.HasPrefix(r.URL.Path, "/magic"):
		return "email"
	case strings.HasPrefix(r.URL.Path, "/v1/scrape"):
		return "scrape"
	case strings.HasPrefix(r.URL.Path, "/upload/avatar/"):
		return "download"
	default:
		return "profile"
	}
}

// URL returns the mock server URL.
func (m *MockUpstream) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockUpstream) Close() {
	m.server.Close()
}

// Reset clears all counters and custom handlers.
func (m *MockUpstream) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.handlers = make(map[string]http.HandlerFunc)
	m.LastRequestHeader = nil
}

// SetHandler installs a custom handler for a route (person, email, scrape,
// download).
func (m *MockUpstream) SetHandler(route string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[route] = handler
}

// SetResponse configures a fixed response for a route.
func (m *MockUpstream) SetResponse(route string, resp MockResponse) {
	m.SetHandler(route, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns how many requests hit a route.
func (m *MockUpstream) RequestCount(route string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[route]
}

// defaultHandler serves plausible payloads so tests only override the
// routes they care about.
func (m *MockUpstream) defaultHandler(route string, w http.ResponseWriter, r *http.Request) {
	switch route {
	case "person":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(PersonPayload("53f42f36dabfaedce54dcd0c", "Ada Lovelace")))
	case "email":
		w.Header().Set("Content-Type", "image/png")
		w.Write(PNGImage(120, 24, color.NRGBA{A: 0}))
	case "scrape":
		avatarURL := fmt.Sprintf("%s/upload/avatar/100/200/300/53f42f36dabfaedce54dcd0c_0.jpg!160", m.server.URL)
		fmt.Fprintf(w, `{"success":true,"data":{"html":"<img src=\"%s\">"}}`, avatarURL)
	case "download":
		w.Header().Set("Content-Type", "image/png")
		w.Write(PNGImage(64, 64, color.NRGBA{R: 30, G: 60, B: 90, A: 255}))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// PersonPayload builds a minimal successful person API payload carrying an
// email magic path.
func PersonPayload(id, name string) string {
	return fmt.Sprintf(`{
  "data": [
    {
      "data": [
        {
          "id": %q,
          "name": %q,
          "profile": {
            "affiliation": "University of London",
            "email": "/magic?W3siYWN0aW9uIjoiZW1haWwifV0="
          }
        }
      ]
    }
  ]
}`, id, name)
}

// PersonPayloadNoEmail builds a successful person payload whose profile has
// no email path.
func PersonPayloadNoEmail(id, name string) string {
	return fmt.Sprintf(`{"data":[{"data":[{"id":%q,"name":%q,"profile":{"affiliation":"MIT"}}]}]}`, id, name)
}

// PersonNotFoundPayload builds a failed person API result.
func PersonNotFoundPayload(context string) string {
	return fmt.Sprintf(`{"data":[{"succeed":false,"code":404,"meta":{"context":%q}}]}`, context)
}

// ScrapePayload builds a scrape response embedding the given avatar URL (or
// none when empty).
func ScrapePayload(avatarURL string) string {
	if avatarURL == "" {
		return `{"success":true,"data":{"html":"<html><p>no avatar</p></html>"}}`
	}
	return fmt.Sprintf(`{"success":true,"data":{"html":"<img src=\"%s\">"}}`, avatarURL)
}

// PNGImage encodes a solid w×h PNG in the given color. Use a zero-alpha
// color for a fully transparent image.
func PNGImage(w, h int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
