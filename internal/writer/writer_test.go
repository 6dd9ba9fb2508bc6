package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/topic"
)

func newTestCore(t *testing.T) (*Core, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()
	store, err := durablelog.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := topic.New()
	core := New(store, reg, Config{MaxBatchSize: 4, MaxBatchLinger: 2 * time.Millisecond, WriteQueueCapacity: 64}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)
	return core, cancel
}

func TestPublishAssignsSequentialSequences(t *testing.T) {
	core, cancel := newTestCore(t)
	defer cancel()

	for i := 1; i <= 5; i++ {
		res, err := core.Publish(context.Background(), "orders", nil, []byte("p"))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if res.Sequence != uint64(i) {
			t.Fatalf("expected sequence %d, got %d", i, res.Sequence)
		}
	}
}

func TestConcurrentPublishesGetDistinctContiguousSequences(t *testing.T) {
	core, cancel := newTestCore(t)
	defer cancel()

	const n = 50
	seqs := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := core.Publish(context.Background(), "t", nil, []byte("p"))
			if err != nil {
				t.Errorf("publish: %v", err)
				return
			}
			seqs[i] = res.Sequence
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, s := range seqs {
		if s == 0 {
			continue
		}
		if seen[s] {
			t.Fatalf("duplicate sequence %d", s)
		}
		seen[s] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct sequences, got %d", n, len(seen))
	}
	for i := uint64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("missing sequence %d in contiguous range", i)
		}
	}
}

func TestPublishRejectsEmptyTopicName(t *testing.T) {
	core, cancel := newTestCore(t)
	defer cancel()

	_, err := core.Publish(context.Background(), "", nil, []byte("p"))
	if err == nil {
		t.Fatalf("expected error for empty topic name")
	}
}

func TestAckIsMaxMonotone(t *testing.T) {
	core, cancel := newTestCore(t)
	defer cancel()

	topicRes, err := core.EnsureTopic(context.Background(), "t")
	if err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	if err := core.Ack(context.Background(), topicRes.ID, "g", 5); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := core.Ack(context.Background(), topicRes.ID, "g", 3); err != nil {
		t.Fatalf("ack: %v", err)
	}
	cursor, err := core.store.LookupCursor(topicRes.ID, "g")
	if err != nil || cursor != 5 {
		t.Fatalf("expected cursor to stay at 5 after stale ack, got %d err=%v", cursor, err)
	}
}

// TestSequenceContinuesAcrossRestart reproduces spec.md's crash/restart
// consistency requirement: a fresh Registry loaded from the reopened
// store's recovered tail must not hand out sequence 1 again for a topic
// that already has durable entries.
func TestSequenceContinuesAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := durablelog.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	reg := topic.New()
	core := New(store, reg, Config{MaxBatchSize: 4, MaxBatchLinger: 2 * time.Millisecond, WriteQueueCapacity: 64}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go core.Run(ctx)

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		res, err := core.Publish(context.Background(), "orders", nil, []byte("p"))
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		lastSeq = res.Sequence
	}
	cancel()
	<-core.Done()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := durablelog.Open(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	persisted, err := reopened.ListTopics()
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	restartedReg := topic.New()
	topics := make([]topic.Topic, 0, len(persisted))
	tails := make(map[uint64]uint64, len(persisted))
	for _, pt := range persisted {
		topics = append(topics, topic.Topic{ID: pt.ID, Name: pt.Name, CreatedAt: pt.CreatedAt})
		tail, err := reopened.TailSequence(pt.ID)
		if err != nil {
			t.Fatalf("tail sequence: %v", err)
		}
		tails[pt.ID] = tail
	}
	restartedReg.Load(topics, tails)

	restartedCore := New(reopened, restartedReg, Config{MaxBatchSize: 4, MaxBatchLinger: 2 * time.Millisecond, WriteQueueCapacity: 64}, nil, nil)
	restartCtx, restartCancel := context.WithCancel(context.Background())
	defer restartCancel()
	go restartedCore.Run(restartCtx)

	res, err := restartedCore.Publish(context.Background(), "orders", nil, []byte("p4"))
	if err != nil {
		t.Fatalf("publish after restart: %v", err)
	}
	if res.Sequence != lastSeq+1 {
		t.Fatalf("expected sequence %d after restart, got %d (reused/overwrote a durable sequence)", lastSeq+1, res.Sequence)
	}

	ordersTopic, ok := restartedReg.Get("orders")
	if !ok {
		t.Fatalf("expected orders topic to be present after restart")
	}
	msgs, err := reopened.ReadRange(ordersTopic.ID, 0, 10)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	if len(msgs) != int(lastSeq)+1 {
		t.Fatalf("expected %d durable messages, got %d: %+v", lastSeq+1, len(msgs), msgs)
	}
	if msgs[0].Sequence != 1 || string(msgs[0].Record.Payload) != "p" {
		t.Fatalf("original pre-restart record at sequence 1 was overwritten: %+v", msgs[0])
	}
}

func TestShutdownRejectsNewPublishes(t *testing.T) {
	core, cancel := newTestCore(t)
	cancel()
	<-core.Done()

	_, err := core.Publish(context.Background(), "t", nil, []byte("p"))
	if err == nil {
		t.Fatalf("expected error after shutdown")
	}
}
