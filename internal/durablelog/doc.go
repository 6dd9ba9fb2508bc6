// Package durablelog implements Sluice's on-disk log: crash-safe append,
// per-topic sequence assignment, and range reads (spec §4.1, Durable Log
// Store). It is backed by a single Pebble database opened once at boot.
//
// Keyspace (byte-ordered, mirroring the teacher's eventlog/keys.go scheme,
// collapsed to single-partition-per-topic since Sluice has no partitioning
// concept):
//
//	topic/meta/{name}                  -> {topic_id BE8, created_at_ms BE8}
//	topic/byid/{topic_id BE8}          -> {name}
//	log/{topic_id BE8}/tail            -> {last_sequence BE8}
//	log/{topic_id BE8}/e/{sequence BE8} -> record(message_id, timestamp_ms, attrs, payload) + crc32c
//	cursor/{topic_id BE8}/{group}      -> {last_ack_sequence BE8}
//
// All writes go through CommitBatch, which builds one *pebble.Batch per
// group-commit window and syncs it to the WAL before returning, matching the
// durability contract: a commit only returns success once a crash
// immediately afterward would preserve every included record.
package durablelog
