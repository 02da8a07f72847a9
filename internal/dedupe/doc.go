// Package dedupe records which gateway events have already been dispatched.
//
// Gateways may redeliver events after a reconnect. The dispatcher keys each
// event by frontend and event ID and asks the cache before handling it:
//
//	if cache.Seen("discord:" + id) {
//	    return // duplicate
//	}
//
// Keys expire after the configured TTL and the cache never holds more than
// its maximum size; the oldest key is evicted first.
package dedupe
