// Package fabric provides the Redis-backed message fabric used by the pisim
// pipeline roles.
//
// # Overview
//
// Every pipeline role runs as an independent process and talks to its peers
// only through the fabric. The fabric offers three message patterns, each
// bound to a named endpoint:
//
//   - Broadcast: one publisher, many subscribers, filtered by message prefix.
//   - Queue: many producers, one consumer, durable FIFO work delivery.
//   - Service: synchronous request/reply with exactly one reply per request.
//
// # Prefix Filtering
//
// A broadcast message is published on a channel whose name ends with the
// message itself (truncated to MaxTopicLength bytes). A subscriber listening
// for the prefix "01" issues PSUBSCRIBE on the channel pattern ending in
// "01*", so Redis performs the routing and a subscriber never sees messages
// outside its prefixes.
//
// # Usage Example
//
//	client, err := fabric.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.Broadcast("samples").Subscribe(ctx, "01", "10", "11")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
//	msg, err := sub.Next(ctx)
//
// # Redis Schema
//
// All keys and channels are namespaced by instance name:
//
// Broadcast channels: pisim:{instance}:bcast:{name}:{topic}
// Queues: pisim:{instance}:queue:{name}
// Service requests: pisim:{instance}:svc:{name}:requests
// Service replies: pisim:{instance}:svc:{name}:reply:{request_id}
package fabric
