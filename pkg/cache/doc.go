// Package cache implements the full-response page cache with
// stale-while-revalidate semantics.
//
// A page is identified by its normalized URL (see package urlnorm) and a
// content type tag. The pair is hashed into a sharded storage key:
//
//	<s1>/<s2>/<s3>/<md5 hex>.<content type>
//
// where s1..s3 are the last three hex digits of the digest.
//
// The manager evaluates every read into one of three decisions:
//
//   - miss: nothing cached, a refresh is scheduled and the caller renders the page
//   - hit: cached page within its TTL, served as is
//   - stale: cached page past its TTL (or refresh=1), served while a refresh is scheduled
//
// Refreshes are handed to a Scheduler as RefreshUnit values and come back
// through Manager.Refresh, which fetches the page from the origin with the
// bypass parameter set. Only a 200 response replaces the stored page;
// concurrent refreshes of one key share a single fetch.
//
// # Basic Usage
//
//	norm := urlnorm.MustNew("", "page,sort")
//	cfg := cache.DefaultConfig(store.NewMemory(), fetcher, norm)
//	cfg.Scheduler = refresh.NewLocal(logger, 4)
//	manager, err := cache.NewManager(cfg, logger)
//
//	u, err := norm.Normalize(r)
//	lookup := manager.Lookup(ctx, u, "html", cache.LookupOptions{})
//	if lookup.Decision.Hit() {
//		w.Write(lookup.Content)
//	}
//
// # Metrics
//
//   - pagecache_lookups_total{state} - Lookups by decision
//   - pagecache_refreshes_scheduled_total{scheduler} - Refresh units handed off
//   - pagecache_refreshes_coalesced_total - Creates joined to an in-flight create
//   - pagecache_creates_total{result} - Origin re-renders by result
//   - pagecache_store_errors_total{operation} - Store failures
package cache
