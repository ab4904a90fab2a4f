// Package cache provides a generic, thread-safe LRU cache with built-in
// statistics and optional Prometheus metrics.
//
// The remote configuration overlay uses it to memoize the candidate key list
// derived for each reference:
//
//	keys, err := cache.NewLRU[[]string](1024,
//	    cache.WithMetrics[[]string](registry, "remote_config_keys"),
//	)
//	list, _ := cache.GetOrCompute(keys, ref.ID(), func() []string { return derive(ref) })
//
// Statistics are always collected and available through Stats(). When a
// metrics registry is supplied, hits, misses, evictions and size are also
// exported under the mywallet_cache_* names with a component label.
//
// Eviction callbacks run after the cache lock is released, so a callback may
// safely call back into the cache.
package cache
