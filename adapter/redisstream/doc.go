// Package redisstream is a Redis Streams transport for xroute routers.
//
// Transport name: "redis-streams"
//
// Config keys:
//   - addr: "host:port" (default "127.0.0.1:6379")
//   - group: consumer group used when a route names none (default "xroute")
//   - consumer: consumer name (default "xroute-<host>-<pid>")
//   - concurrency: workers per subscription (default 8)
//   - batch_size: XREADGROUP COUNT (default 128)
//   - block: XREADGROUP BLOCK duration (default 5s)
//   - auto_create: create group and stream if missing (default true)
//   - auto_delete_on_ack: XDEL after XACK (default false)
//   - dead_letter: stream receiving nacked envelopes (optional)
//   - claim_min_idle, claim_interval, claim_batch: pending entry recovery
//
// Routers built on it:
//
//	r, _ := xroute.NewRouterBuilder().
//	    WithTransport(redisstream.TransportName, map[string]any{
//	        "addr":        "localhost:6379",
//	        "consumer":    "svc-a",
//	        "concurrency": 16,
//	        "block":       "2s",
//	        "dead_letter": "orders-dlq",
//	    }).
//	    WithRoute(route).
//	    Build()
package redisstream
