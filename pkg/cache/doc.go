// Package cache provides a Redis-backed cache for Places API detail records.
//
// Detail lookups are the most expensive call of a search run (one request
// per surviving candidate, with the broad detail field mask). Repeated runs
// over overlapping areas hit the same places, so the client can serve fresh
// records from Redis instead of spending upstream quota.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, 15*time.Minute)
//
//	key := cache.DetailKey("ChIJN1t_tDeuEmsRUsoyG83frY4", client.DetailFieldMask)
//	detail, err := manager.GetDetail(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from the Places API
//	}
//
// Keys include a hash of the field mask so records fetched with different
// masks never shadow each other. Entries expire in Redis after the manager's
// TTL; an entry read after its Expires time is deleted and reported as a miss.
//
// # Metrics
//
//   - places_cache_hits_total{layer="redis"} - Cache hits
//   - places_cache_misses_total - Cache misses
//   - places_cache_written_bytes_total{layer="redis"} - Bytes written
//   - places_cache_errors_total{operation} - Cache operation errors
package cache
