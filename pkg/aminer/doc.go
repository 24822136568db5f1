// Package aminer implements the upstream scholar-data provider clients.
//
// The provider is reached through three independent downstream targets,
// each with its own timeout budget:
//
//   - the person API (POST magic endpoint) for scholar detail payloads,
//     forwarding the caller-supplied Authorization / X-Signature /
//     X-Timestamp credentials and retrying transient failures exactly once
//     after a fixed delay;
//   - a rendering-capable scrape service used to discover avatar URLs on
//     profile pages, scanned incrementally from the streamed response body
//     so large rendered pages never need a full in-memory buffer;
//   - the asset CDN and the email-image endpoint for binary downloads,
//     which are never retried (the caller retries on its next request).
//
// The raw provider payload is deeply nested with many optional layers.
// Rather than dynamic traversal, schema.go declares the optional-field
// structure explicitly and exposes safe accessors that return absence
// instead of panicking on a missing path. normalize.go converts the raw
// payload into the stable official response shape plus a loosely-typed
// enriched-extras bag.
package aminer
