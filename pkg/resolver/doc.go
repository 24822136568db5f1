// Package resolver implements the three cache-mediated resolvers of the
// scholar data proxy: scholar detail, avatar, and email image.
//
// Every resolver follows the same control flow: consult the cache store
// first (a unified lookup distinguishing fresh records, confirmed-absent
// negative markers, and plain misses), and only on a miss or explicit
// refresh reach out to the upstream provider, transform the result, and
// write back through the store. Concurrent misses for the same key are
// collapsed to a single upstream call with singleflight; the winning
// result is shared by every waiter.
//
// Failure polarity matters: confirmed absences (no avatar URL on the
// profile page, placeholder-sized avatar bytes, no email on file) are
// negative-cached so subsequent calls short-circuit without network
// access, while transient failures (transport errors, provider 5xx,
// timeouts) cache nothing so the next call can retry.
package resolver
