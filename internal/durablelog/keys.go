package durablelog

import "encoding/binary"

// Keyspace helpers for Pebble keys, byte-ordered so range scans stay
// lexicographically correct without secondary indexes.
var (
	topicMetaPrefix = []byte("topic/meta/")
	topicByIDPrefix = []byte("topic/byid/")
	logPrefix       = []byte("log/")
	tailSuffix      = []byte("/tail")
	entrySeg        = []byte("/e/")
	cursorPrefix    = []byte("cursor/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func beUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// keyTopicMeta builds the name -> {id, created_at} lookup key.
func keyTopicMeta(name string) []byte {
	k := make([]byte, 0, len(topicMetaPrefix)+len(name))
	k = append(k, topicMetaPrefix...)
	k = append(k, name...)
	return k
}

// keyTopicByID builds the id -> name lookup key.
func keyTopicByID(topicID uint64) []byte {
	k := make([]byte, 0, len(topicByIDPrefix)+8)
	k = append(k, topicByIDPrefix...)
	k = appendBE8(k, topicID)
	return k
}

// keyLogTail builds the per-topic last-assigned-sequence key.
func keyLogTail(topicID uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+8+len(tailSuffix))
	k = append(k, logPrefix...)
	k = appendBE8(k, topicID)
	k = append(k, tailSuffix...)
	return k
}

// keyLogEntry builds an individual message entry key.
func keyLogEntry(topicID, seq uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+8+len(entrySeg)+8)
	k = append(k, logPrefix...)
	k = appendBE8(k, topicID)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// keyLogEntryLowBound and keyLogEntryHighBound frame a [low, high) range
// covering every entry for topicID, for use as pebble.IterOptions bounds.
func keyLogEntryLowBound(topicID uint64) []byte  { return keyLogEntry(topicID, 0) }
func keyLogEntryHighBound(topicID uint64) []byte { return keyLogEntry(topicID, ^uint64(0)) }

// keyCursor builds the (topic, group) durable ack-cursor key.
func keyCursor(topicID uint64, group string) []byte {
	k := make([]byte, 0, len(cursorPrefix)+8+1+len(group))
	k = append(k, cursorPrefix...)
	k = appendBE8(k, topicID)
	k = append(k, '/')
	k = append(k, group...)
	return k
}
