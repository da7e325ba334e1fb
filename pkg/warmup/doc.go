// Package warmup fills the page cache for a list of URLs ahead of traffic.
//
// Example usage:
//
//	urls, _ := warmup.ReadURLs(file)
//	w := warmup.New(manager, warmup.DefaultConfig(), logger)
//	report, err := w.Warm(ctx, urls)
//
// The warmer:
//   - Runs at most MaxConcurrency fetches at once (default 10)
//   - Bounds every fetch with its own timeout
//   - Keeps going when single pages fail and lists them in the report
//   - Stops early only when the context is cancelled
package warmup
