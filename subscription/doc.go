// Package subscription maintains the long-lived websocket subscription to the
// live train movement feed.
//
// A Subscription moves through
//
//	Idle -> Connecting -> Subscribed -> (Disconnected -> Connecting)* -> Closing -> Closed
//
// Disconnects are recovered automatically with capped exponential backoff and
// never given up on; after a run of consecutive failed connects the loop
// pauses for a cooldown before trying again. Only Close stops reconnecting.
package subscription
