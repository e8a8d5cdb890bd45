// Package stream bridges model subscriptions to long-lived viewer streams.
//
// A [Bridge] registers a subscription under a process-unique key, then waits
// on two sources at once: pushes from the model and [Control] signals from the
// transport. Pushes are serialized to JSON and written as server-sent event
// frames (see [Frame]); duplicates of the last payload are skipped.
//
// Two bridges exist: [NewQueryBridge] for fact queries and [NewSampleBridge]
// for sample details.
package stream
