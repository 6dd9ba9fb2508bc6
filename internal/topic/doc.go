// Package topic implements the Topic Registry (spec §4.5) and the Notify
// Bus (spec §4.3) it hosts. The registry is an in-memory map from topic
// name to id, created-at, and tail sequence, populated from the durable
// store at boot and kept coherent by the Writer Core, the only mutator of
// tail sequence and the id counter. It also holds the per-topic broadcast
// wake channel and the group-membership table the Subscription Engine uses
// for competitive single-active-consumer displacement.
//
// The wake mechanism is the "close channel, then install a fresh one"
// pattern: closing a channel wakes every current receiver at once, which is
// exactly the fan-out spec §4.3 needs and is lossy-tolerant by construction
// (a receiver that misses a close will simply see the next one, or find
// fresh data already waiting when it re-polls the log). It generalizes the
// teacher's own eventlog.Log.notifyCh, which used the identical trick for a
// single log rather than a per-topic broadcast.
package topic
