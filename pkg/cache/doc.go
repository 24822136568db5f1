// Package cache provides the file-backed cache store shared by all
// resolvers.
//
// Records live under a base directory split into three namespaces (detail,
// avatar, email), each a flat key-to-file mapping. A record is either a
// positive record (JSON or raw image bytes) or a negative marker: an empty
// file with a namespace-specific suffix meaning "confirmed absent or
// default". Markers never collide with positive record paths.
//
// Validity is purely a function of file modification time against a
// caller-supplied TTL. There is no background eviction; expiry is discovered
// lazily on the next lookup. Writes go through a temp-file-then-rename so a
// concurrent reader never observes a partial record. No cross-process
// locking is performed: two concurrent misses for the same key may both
// fetch upstream and both write, with the later write winning.
//
// # Basic Usage
//
//	store, err := cache.New("./cache")
//	if err != nil {
//		return err
//	}
//
//	res := store.Lookup(cache.NamespaceAvatar, scholarID, cache.Query{
//		Extensions:  []string{".jpg", ".jpeg", ".png"},
//		TTL:         365 * 24 * time.Hour,
//		NegativeTTL: 30 * 24 * time.Hour,
//	})
//	switch res.State {
//	case cache.StateFresh:
//		data, err := store.ReadBytes(res.Path)
//		// ...
//	case cache.StateNegative:
//		// confirmed absent, short-circuit without a network call
//	case cache.StateMiss:
//		// fetch upstream, then WriteBytes + ClearMarker
//	}
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - proxy_cache_hits_total{namespace} - valid positive records served
//   - proxy_cache_negative_hits_total{namespace} - negative marker short-circuits
//   - proxy_cache_misses_total{namespace} - lookups that found nothing valid
//   - proxy_cache_errors_total{operation} - read/write/clear failures
package cache
