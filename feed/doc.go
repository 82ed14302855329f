// Package feed decodes raw train movement messages from the live feed.
//
// Only DEPARTURE activity messages are turned into events. The actual
// departure timestamp is located by scanning body fields in document order
// for the first key containing "act", since the upstream key for it has been
// observed to arrive corrupted.
package feed
