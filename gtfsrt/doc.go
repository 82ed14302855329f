// Package gtfsrt publishes the day's early departures as a GTFS-Realtime feed.
//
// Each detection becomes one TripUpdate entity with a single departure
// StopTimeEvent at the monitored stop. The delay is negative, the number of
// seconds the train left ahead of its published time.
package gtfsrt
