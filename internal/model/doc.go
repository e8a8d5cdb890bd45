// Package model implements the fact model: the single owner of every fact
// store in the process.
//
// Callers talk to a [Manager] only through messages. Producers send updates
// carrying an [UpdateFunc] and an opaque payload; viewers register standing
// queries and receive a [Notification] whenever an update changes the answer.
// One-shot queries reply on a caller-supplied channel.
//
// After every update that reports a change, each subscription on the mutated
// store is re-evaluated through the shared query cache and compared with what
// it was last sent. Only differences are pushed, so replaying identical data
// is silent.
package model
