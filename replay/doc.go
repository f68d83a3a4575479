// Package replay provides caches that remember accepted request signatures
// so a signed request cannot be submitted twice inside its validity window.
//
// Memory keeps entries in process and suits a single gateway instance. Redis
// shares entries between instances:
//
//	cache, err := replay.DialRedis(ctx, replay.RedisConfig{Addr: "localhost:6379"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
//
// Both implement signedreq.ReplayCache.
package replay
