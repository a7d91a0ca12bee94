// Package cache provides the cache generation store of the offline layer.
//
// A generation is a named, durable key→response container. Its name carries the
// purpose it serves and the deploy version that created it:
//
//	static-assets-v2
//	api-data-v2
//
// Exactly one generation per purpose is current at a time. Older generations only
// survive until the lifecycle controller activates a newer version and deletes them;
// individual entries are never evicted.
//
// # Keys and Entries
//
// Entries are keyed by the canonical form of a request (method plus absolute URL,
// fragment removed):
//
//	key := cache.KeyFor(req)          // "GET https://example.com/app.js"
//	entry, err := cache.ResponseToEntry(resp)
//	if err := store.Put(ctx, "static-assets-v2", key, entry); err != nil {
//		return err
//	}
//
//	stored, err := store.Match(ctx, "static-assets-v2", key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// not stored
//	}
//	resp := stored.Response(req) // fresh body reader on every call
//
// # Backends
//
//   - RedisStore: one Redis hash per generation plus a registry set of names
//   - SQLiteStore: a single SQLite file (pure-Go driver), the default durable backend
//   - MemoryStore: in-process maps, used by tests and the "memory" backend
//
// # Metrics
//
//   - offline_cache_hits_total{purpose} - lookups answered from a generation
//   - offline_cache_misses_total{purpose} - lookups that found nothing
//   - offline_cache_errors_total{operation} - store operation errors
//   - offline_cache_generations_deleted_total - generations destroyed by activation
package cache
