package durablelog

import (
	"context"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/sluicelabs/sluice/internal/errs"
	pebblestore "github.com/sluicelabs/sluice/internal/storage/pebble"
)

// Topic is a persisted topic record (spec §3, Topic entity).
type Topic struct {
	ID        uint64
	Name      string
	CreatedAt int64 // ms since epoch
}

// Message is a persisted, sequence-numbered log entry (spec §3, Message
// entity), as returned by ReadRange.
type Message struct {
	TopicID   uint64
	Sequence  uint64
	Record    Record
}

// PublishRecord is one not-yet-committed publish awaiting sequence
// assignment and inclusion in the next batch.
type PublishRecord struct {
	TopicID uint64
	Record  Record
}

// CursorUpdate is one not-yet-committed ack cursor advance.
type CursorUpdate struct {
	TopicID uint64
	Group   string
	NewAck  uint64
}

// Store wraps a Pebble database with the log's three logical tables
// (topics, messages, cursors), following the primary keys spec.md §4.1
// prescribes: topics(name UNIQUE), messages(topic_id, sequence), and
// cursors(topic_id, group_name).
type Store struct {
	db *pebblestore.DB
}

// Open initializes the store at dataDir, recovering any partial
// transaction via Pebble's own WAL replay. Idempotent.
func Open(dataDir string) (*Store, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: dataDir,
		Fsync:   pebblestore.FsyncModeInterval,
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "durablelog.Open", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// EnsureTopic performs a single-transaction upsert: returns the existing
// topic if name is already registered, otherwise persists a new topic under
// the caller-supplied id and creation time.
func (s *Store) EnsureTopic(name string, id uint64, createdAtMs int64) (Topic, bool, error) {
	metaKey := keyTopicMeta(name)
	if existing, err := s.db.Get(metaKey); err == nil && len(existing) >= 16 {
		return Topic{ID: beUint64(existing[:8]), Name: name, CreatedAt: int64(beUint64(existing[8:16]))}, false, nil
	}

	meta := make([]byte, 0, 16)
	meta = appendBE8(meta, id)
	meta = appendBE8(meta, uint64(createdAtMs))

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(metaKey, meta, nil); err != nil {
		return Topic{}, false, errs.Wrap(errs.Internal, "durablelog.EnsureTopic", err)
	}
	if err := b.Set(keyTopicByID(id), []byte(name), nil); err != nil {
		return Topic{}, false, errs.Wrap(errs.Internal, "durablelog.EnsureTopic", err)
	}
	var tail [8]byte
	if err := b.Set(keyLogTail(id), tail[:], nil); err != nil {
		return Topic{}, false, errs.Wrap(errs.Internal, "durablelog.EnsureTopic", err)
	}
	if err := s.db.CommitBatch(context.Background(), b); err != nil {
		return Topic{}, false, errs.Wrap(errs.Internal, "durablelog.EnsureTopic", err)
	}
	return Topic{ID: id, Name: name, CreatedAt: createdAtMs}, true, nil
}

// ListTopics returns every registered topic, ordered lexicographically by
// name (spec §4.1's list_topics contract).
func (s *Store) ListTopics() ([]Topic, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: topicMetaPrefix,
		UpperBound: prefixUpperBound(topicMetaPrefix),
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "durablelog.ListTopics", err)
	}
	defer iter.Close()

	var topics []Topic
	for iter.First(); iter.Valid(); iter.Next() {
		name := string(iter.Key()[len(topicMetaPrefix):])
		v := iter.Value()
		if len(v) < 16 {
			continue
		}
		topics = append(topics, Topic{ID: beUint64(v[:8]), Name: name, CreatedAt: int64(beUint64(v[8:16]))})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
	return topics, nil
}

// TailSequence returns MAX(sequence) for topicID (0 if none), used to
// bootstrap the writer's in-memory counters at open.
func (s *Store) TailSequence(topicID uint64) (uint64, error) {
	v, err := s.db.Get(keyLogTail(topicID))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, errs.Wrap(errs.Internal, "durablelog.TailSequence", err)
	}
	if len(v) < 8 {
		return 0, nil
	}
	return beUint64(v), nil
}

// LookupCursor returns the persisted ack cursor for (topicID, group), or 0
// if none has been committed yet.
func (s *Store) LookupCursor(topicID uint64, group string) (uint64, error) {
	v, err := s.db.Get(keyCursor(topicID, group))
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, errs.Wrap(errs.Internal, "durablelog.LookupCursor", err)
	}
	if len(v) < 8 {
		return 0, nil
	}
	return beUint64(v), nil
}

// CommitBatch performs the single group-commit transaction of spec.md
// §4.1: it writes every pre-sequenced publish record, applies every cursor
// update with max-monotone semantics (a lower or equal ack is a no-op),
// updates each affected topic's tail, and syncs to the WAL before
// returning. seqs gives the sequence already assigned to each entry in
// pubs, in order (assignment itself happens in the Writer Core, which owns
// the in-memory counters).
func (s *Store) CommitBatch(ctx context.Context, pubs []PublishRecord, seqs []uint64, tails map[uint64]uint64, cursors []CursorUpdate) error {
	if len(pubs) == 0 && len(cursors) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()

	for i, p := range pubs {
		val, err := encodeRecord(p.Record)
		if err != nil {
			return errs.Wrap(errs.Internal, "durablelog.CommitBatch", err)
		}
		if err := b.Set(keyLogEntry(p.TopicID, seqs[i]), val, nil); err != nil {
			return errs.Wrap(errs.Internal, "durablelog.CommitBatch", err)
		}
	}
	for topicID, tail := range tails {
		var v [8]byte
		putBE8(v[:], tail)
		if err := b.Set(keyLogTail(topicID), v[:], nil); err != nil {
			return errs.Wrap(errs.Internal, "durablelog.CommitBatch", err)
		}
	}
	for _, cu := range cursors {
		key := keyCursor(cu.TopicID, cu.Group)
		cur, err := s.db.Get(key)
		if err == nil && len(cur) >= 8 && beUint64(cur) >= cu.NewAck {
			continue // max-monotone: never regress
		}
		var v [8]byte
		putBE8(v[:], cu.NewAck)
		if err := b.Set(key, v[:], nil); err != nil {
			return errs.Wrap(errs.Internal, "durablelog.CommitBatch", err)
		}
	}

	if err := s.db.CommitBatch(ctx, b); err != nil {
		return errs.Wrap(errs.Internal, "durablelog.CommitBatch", err)
	}
	return nil
}

// ReadRange returns up to maxCount messages for topicID with sequence >
// afterSequence, ordered ascending (spec §4.1's read_range contract).
func (s *Store) ReadRange(topicID, afterSequence uint64, maxCount int) ([]Message, error) {
	low := keyLogEntryLowBound(topicID)
	high := append(keyLogEntryHighBound(topicID), 0x00)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "durablelog.ReadRange", err)
	}
	defer iter.Close()

	startKey := keyLogEntry(topicID, afterSequence+1)
	if !iter.SeekGE(startKey) {
		return nil, nil
	}
	msgs := make([]Message, 0, maxCount)
	for iter.Valid() && (maxCount <= 0 || len(msgs) < maxCount) {
		seq := beUint64(iter.Key()[len(iter.Key())-8:])
		rec, ok := decodeRecord(iter.Value())
		if !ok {
			return nil, errs.New(errs.Internal, "durablelog.ReadRange", "corrupt record checksum")
		}
		msgs = append(msgs, Message{TopicID: topicID, Sequence: seq, Record: rec})
		if !iter.Next() {
			break
		}
	}
	return msgs, nil
}

func putBE8(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func prefixUpperBound(prefix []byte) []byte {
	up := append([]byte(nil), prefix...)
	for i := len(up) - 1; i >= 0; i-- {
		if up[i] != 0xff {
			up[i]++
			return up[:i+1]
		}
	}
	return nil // prefix is all 0xff, unbounded above
}
