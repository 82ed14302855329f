// Package notify publishes notification text to the social media account.
//
// The Dispatcher is fire-and-forget: outcomes are logged and never returned
// to the pipeline, which must not retry or stop on a failed publish.
package notify
