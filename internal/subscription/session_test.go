package subscription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/internal/writer"
)

type fakeSink struct {
	deliveries chan MessageDelivery
}

func newFakeSink() *fakeSink { return &fakeSink{deliveries: make(chan MessageDelivery, 64)} }

func (f *fakeSink) Send(m MessageDelivery) error {
	f.deliveries <- m
	return nil
}

type rig struct {
	store *durablelog.Store
	reg   *topic.Registry
	w     *writer.Core
	stop  context.CancelFunc
}

func newRig(t *testing.T) *rig {
	t.Helper()
	dir := t.TempDir()
	store, err := durablelog.Open(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := topic.New()
	w := writer.New(store, reg, writer.Config{MaxBatchSize: 4, MaxBatchLinger: 2 * time.Millisecond, WriteQueueCapacity: 64}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return &rig{store: store, reg: reg, w: w, stop: cancel}
}

func (r *rig) publishN(t *testing.T, topicName string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := r.w.Publish(context.Background(), topicName, nil, []byte(fmt.Sprintf("payload-%d", i))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
}

func recvWithTimeout(t *testing.T, ch <-chan MessageDelivery) MessageDelivery {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
		return MessageDelivery{}
	}
}

func expectNoDelivery(t *testing.T, ch <-chan MessageDelivery) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected delivery with no credit: seq=%d", m.Sequence)
	case <-time.After(50 * time.Millisecond):
	}
}

// TestCreditGatingDeliversOnlyGrantedAmount covers scenario 2: five messages
// already published, a session granted 2 credits sees exactly seq 1-2 and
// then idles until granted more.
func TestCreditGatingDeliversOnlyGrantedAmount(t *testing.T) {
	r := newRig(t)
	defer r.stop()

	if _, err := r.w.EnsureTopic(context.Background(), "orders"); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	r.publishN(t, "orders", 5)

	upstream := make(chan UpstreamFrame, 8)
	sink := newFakeSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := Open(ctx, r.store, r.reg, r.w, nil, Init{Topic: "orders", Group: "g1", InitialPosition: Earliest}, upstream, sink)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	done := make(chan Status, 1)
	go func() { done <- sess.Run(ctx) }()

	upstream <- CreditGrant{N: 2}
	first := recvWithTimeout(t, sink.deliveries)
	second := recvWithTimeout(t, sink.deliveries)
	if first.Sequence != 1 || second.Sequence != 2 {
		t.Fatalf("expected sequences 1,2, got %d,%d", first.Sequence, second.Sequence)
	}
	expectNoDelivery(t, sink.deliveries)

	upstream <- CreditGrant{N: 2}
	third := recvWithTimeout(t, sink.deliveries)
	fourth := recvWithTimeout(t, sink.deliveries)
	if third.Sequence != 3 || fourth.Sequence != 4 {
		t.Fatalf("expected sequences 3,4, got %d,%d", third.Sequence, fourth.Sequence)
	}
	expectNoDelivery(t, sink.deliveries)

	cancel()
	status := <-done
	if status != StatusCancelled {
		t.Fatalf("expected StatusCancelled, got %v", status)
	}
}

// TestGroupTakeoverDisplacesPreviousSession covers scenario 4: a second
// session joining the same (topic, group) displaces the first.
func TestGroupTakeoverDisplacesPreviousSession(t *testing.T) {
	r := newRig(t)
	defer r.stop()

	if _, err := r.w.EnsureTopic(context.Background(), "orders"); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	up1 := make(chan UpstreamFrame, 4)
	sink1 := newFakeSink()
	s1, err := Open(ctx, r.store, r.reg, r.w, nil, Init{Topic: "orders", Group: "shared", InitialPosition: Latest}, up1, sink1)
	if err != nil {
		t.Fatalf("open s1: %v", err)
	}
	done1 := make(chan Status, 1)
	go func() { done1 <- s1.Run(ctx) }()

	up2 := make(chan UpstreamFrame, 4)
	sink2 := newFakeSink()
	s2, err := Open(ctx, r.store, r.reg, r.w, nil, Init{Topic: "orders", Group: "shared", InitialPosition: Latest}, up2, sink2)
	if err != nil {
		t.Fatalf("open s2: %v", err)
	}
	done2 := make(chan Status, 1)
	go func() { done2 <- s2.Run(ctx) }()

	select {
	case status := <-done1:
		if status != StatusDisplaced {
			t.Fatalf("expected s1 StatusDisplaced, got %v", status)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for s1 to be displaced")
	}

	cancel()
	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for s2 to exit")
	}
}

// TestLatestStartPositionIgnoresBacklog covers the Latest initial position:
// messages published before Open must not be delivered.
func TestLatestStartPositionIgnoresBacklog(t *testing.T) {
	r := newRig(t)
	defer r.stop()

	if _, err := r.w.EnsureTopic(context.Background(), "orders"); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	r.publishN(t, "orders", 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upstream := make(chan UpstreamFrame, 4)
	sink := newFakeSink()
	sess, err := Open(ctx, r.store, r.reg, r.w, nil, Init{Topic: "orders", Group: "latest-g", InitialPosition: Latest}, upstream, sink)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	done := make(chan Status, 1)
	go func() { done <- sess.Run(ctx) }()

	upstream <- CreditGrant{N: 10}
	expectNoDelivery(t, sink.deliveries)

	if _, err := r.w.Publish(context.Background(), "orders", nil, []byte("new")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	m := recvWithTimeout(t, sink.deliveries)
	if m.Sequence != 4 {
		t.Fatalf("expected new message to be sequence 4, got %d", m.Sequence)
	}

	cancel()
	<-done
}

// TestEarliestStartPositionResumesFromCursor covers the Earliest initial
// position honoring a previously committed ack cursor.
func TestEarliestStartPositionResumesFromCursor(t *testing.T) {
	r := newRig(t)
	defer r.stop()

	if _, err := r.w.EnsureTopic(context.Background(), "orders"); err != nil {
		t.Fatalf("ensure topic: %v", err)
	}
	r.publishN(t, "orders", 5)

	topicRes, ok := r.reg.Get("orders")
	if !ok {
		t.Fatalf("topic not found after ensure")
	}
	if err := r.w.Ack(context.Background(), topicRes.ID, "resumer", 2); err != nil {
		t.Fatalf("ack: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	upstream := make(chan UpstreamFrame, 4)
	sink := newFakeSink()
	sess, err := Open(ctx, r.store, r.reg, r.w, nil, Init{Topic: "orders", Group: "resumer", InitialPosition: Earliest}, upstream, sink)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	done := make(chan Status, 1)
	go func() { done <- sess.Run(ctx) }()

	upstream <- CreditGrant{N: 10}
	third := recvWithTimeout(t, sink.deliveries)
	if third.Sequence != 3 {
		t.Fatalf("expected first delivered sequence to be 3 (after cursor at 2), got %d", third.Sequence)
	}

	cancel()
	<-done
}
