// Package writer implements the Writer Core (spec §4.2): the single owner
// of the durable log's write handle. It serializes every publish, ack, and
// topic-create mutation onto one goroutine's command queue, coalesces them
// into group commits, and announces affected topics on the Notify Bus after
// each successful commit.
//
// The batch accumulator's size-and-linger trigger is ported from the
// original implementation's BatchAccumulator/BatchConfig
// (storage/batch.rs): a batch flushes when it reaches MaxBatchSize items or
// MaxBatchLinger has elapsed since the first item arrived, whichever comes
// first.
package writer
