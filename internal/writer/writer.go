package writer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sluicelabs/sluice/internal/durablelog"
	"github.com/sluicelabs/sluice/internal/errs"
	"github.com/sluicelabs/sluice/internal/limits"
	"github.com/sluicelabs/sluice/internal/metrics"
	"github.com/sluicelabs/sluice/internal/topic"
	"github.com/sluicelabs/sluice/pkg/log"
)

// PublishResult is returned to a caller once its publish has been durably
// committed (spec §6, PublishResponse).
type PublishResult struct {
	MessageID uuid.UUID
	Sequence  uint64
}

type command interface{ isCommand() }

type publishCmd struct {
	topicName string
	attrs     map[string]string
	payload   []byte
	reply     chan publishOutcome
}

type publishOutcome struct {
	result PublishResult
	err    error
}

func (publishCmd) isCommand() {}

type ackCmd struct {
	topicID  uint64
	group    string
	sequence uint64
	reply    chan error
}

func (ackCmd) isCommand() {}

type ensureTopicCmd struct {
	name  string
	reply chan ensureTopicOutcome
}

type ensureTopicOutcome struct {
	topic topic.Topic
	err   error
}

func (ensureTopicCmd) isCommand() {}

// Config configures the Writer Core's batching and queue behavior (spec §6:
// max_batch_size, max_batch_linger_ms, write_queue_capacity).
type Config struct {
	MaxBatchSize       int
	MaxBatchLinger     time.Duration
	WriteQueueCapacity int
}

// Core is the single owner of the durable log's write handle (spec §4.2).
type Core struct {
	store    *durablelog.Store
	registry *topic.Registry
	metrics  metrics.Hook
	logger   log.Logger
	cfg      Config

	queue chan command

	closingMu sync.RWMutex
	closing   bool

	doneCh chan struct{}
}

// New constructs a Writer Core. The caller must call Run in its own
// goroutine before issuing any Publish/Ack/EnsureTopic call.
func New(store *durablelog.Store, registry *topic.Registry, cfg Config, m metrics.Hook, logger log.Logger) *Core {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = limits.DefaultMaxBatch
	}
	if cfg.MaxBatchLinger <= 0 {
		cfg.MaxBatchLinger = limits.DefaultLingerMs * time.Millisecond
	}
	if cfg.WriteQueueCapacity <= 0 {
		cfg.WriteQueueCapacity = 4096
	}
	if m == nil {
		m = metrics.Noop{}
	}
	return &Core{
		store:    store,
		registry: registry,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		queue:    make(chan command, cfg.WriteQueueCapacity),
		doneCh:   make(chan struct{}),
	}
}

// Publish submits a publish command and blocks until it is durably
// committed or the context is cancelled. It never returns success before
// the record is fsynced and visible to reads (spec invariant 2).
func (c *Core) Publish(ctx context.Context, topicName string, attrs map[string]string, payload []byte) (PublishResult, error) {
	if err := limits.ValidateTopicName(topicName); err != nil {
		return PublishResult{}, err
	}
	if err := limits.ValidatePayload(payload); err != nil {
		return PublishResult{}, err
	}
	if err := limits.ValidateAttributes(attrs); err != nil {
		return PublishResult{}, err
	}

	reply := make(chan publishOutcome, 1)
	cmd := publishCmd{topicName: topicName, attrs: attrs, payload: payload, reply: reply}
	if err := c.submit(ctx, cmd); err != nil {
		return PublishResult{}, err
	}
	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return PublishResult{}, errs.Wrap(errs.Cancelled, "writer.Publish", ctx.Err())
	}
}

// Ack submits an ack command; success means the cursor advance has been
// durably committed (subject to max-monotone semantics — a stale ack is a
// silent no-op, never an error).
func (c *Core) Ack(ctx context.Context, topicID uint64, group string, sequence uint64) error {
	reply := make(chan error, 1)
	cmd := ackCmd{topicID: topicID, group: group, sequence: sequence, reply: reply}
	if err := c.submit(ctx, cmd); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, "writer.Ack", ctx.Err())
	}
}

// EnsureTopic resolves or creates a topic by name through the writer's
// single-threaded path, matching spec §4.1's ensure_topic contract.
func (c *Core) EnsureTopic(ctx context.Context, name string) (topic.Topic, error) {
	if err := limits.ValidateTopicName(name); err != nil {
		return topic.Topic{}, err
	}
	reply := make(chan ensureTopicOutcome, 1)
	cmd := ensureTopicCmd{name: name, reply: reply}
	if err := c.submit(ctx, cmd); err != nil {
		return topic.Topic{}, err
	}
	select {
	case out := <-reply:
		return out.topic, out.err
	case <-ctx.Done():
		return topic.Topic{}, errs.Wrap(errs.Cancelled, "writer.EnsureTopic", ctx.Err())
	}
}

func (c *Core) submit(ctx context.Context, cmd command) error {
	c.closingMu.RLock()
	closing := c.closing
	c.closingMu.RUnlock()
	if closing {
		return errs.New(errs.Unavailable, "writer.submit", "writer is shutting down")
	}
	select {
	case c.queue <- cmd:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, "writer.submit", ctx.Err())
	}
}

// Run drives the batch loop until ctx is cancelled, then drains the queue,
// rejecting further submissions, commits one final batch, and returns
// (spec §4.2's shutdown contract).
func (c *Core) Run(ctx context.Context) {
	defer close(c.doneCh)
	acc := newBatchAccumulator(c.cfg.MaxBatchSize, c.cfg.MaxBatchLinger)

	for {
		if acc.empty() {
			select {
			case cmd := <-c.queue:
				acc.push(cmd)
			case <-ctx.Done():
				c.beginShutdown()
				c.drainFinal(acc)
				return
			}
			continue
		}

		if acc.ready() {
			c.flush(acc.drain())
			continue
		}

		select {
		case cmd := <-c.queue:
			if acc.push(cmd) {
				c.flush(acc.drain())
			}
		case <-time.After(acc.timeUntilReady()):
			c.flush(acc.drain())
		case <-ctx.Done():
			c.beginShutdown()
			c.drainFinal(acc)
			return
		}
	}
}

// Done reports a channel closed once Run has returned.
func (c *Core) Done() <-chan struct{} { return c.doneCh }

func (c *Core) beginShutdown() {
	c.closingMu.Lock()
	c.closing = true
	c.closingMu.Unlock()
}

// drainFinal empties whatever is already queued (non-blockingly) plus
// whatever acc is holding, commits it as one last batch, then rejects
// anything still arriving with Unavailable.
func (c *Core) drainFinal(acc *batchAccumulator) {
	for {
		select {
		case cmd := <-c.queue:
			acc.push(cmd)
		default:
			if !acc.empty() {
				c.flush(acc.drain())
			}
			c.rejectRemaining()
			return
		}
	}
}

func (c *Core) rejectRemaining() {
	for {
		select {
		case cmd := <-c.queue:
			c.rejectCommand(cmd)
		default:
			return
		}
	}
}

func (c *Core) rejectCommand(cmd command) {
	err := errs.New(errs.Unavailable, "writer", "shutting down")
	switch v := cmd.(type) {
	case publishCmd:
		v.reply <- publishOutcome{err: err}
	case ackCmd:
		v.reply <- err
	case ensureTopicCmd:
		v.reply <- ensureTopicOutcome{err: err}
	}
}

// flush is the group-commit step: spec §4.2 steps 3-6.
func (c *Core) flush(cmds []command) {
	start := time.Now()

	type pending struct {
		cmd publishCmd
		rec durablelog.PublishRecord
		seq uint64
	}
	var pendingPubs []pending
	var cursorUpdates []durablelog.CursorUpdate
	var ackCmds []ackCmd
	var ensureCmds []ensureTopicCmd

	counters := make(map[uint64]uint64) // topicID -> next sequence to assign, seeded lazily from registry.Tail
	nowMs := time.Now().UnixMilli()

	resolve := func(name string) (topic.Topic, error) {
		if t, ok := c.registry.Get(name); ok {
			return t, nil
		}
		id := c.registry.NextID()
		t, _, err := c.store.EnsureTopic(name, id, nowMs)
		if err != nil {
			return topic.Topic{}, err
		}
		if _, ok := c.registry.Get(name); !ok {
			c.registry.Insert(topic.Topic{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt})
		}
		return topic.Topic{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}, nil
	}

	for _, raw := range cmds {
		switch cmd := raw.(type) {
		case publishCmd:
			t, err := resolve(cmd.topicName)
			if err != nil {
				cmd.reply <- publishOutcome{err: errs.Wrap(errs.Internal, "writer.flush", err)}
				continue
			}
			if _, seen := counters[t.ID]; !seen {
				counters[t.ID] = c.registry.Tail(t.ID)
			}
			counters[t.ID]++
			seq := counters[t.ID]
			id, err := uuid.NewV7()
			if err != nil {
				cmd.reply <- publishOutcome{err: errs.Wrap(errs.Internal, "writer.flush", err)}
				continue
			}
			rec := durablelog.PublishRecord{
				TopicID: t.ID,
				Record: durablelog.Record{
					MessageID: id,
					Timestamp: nowMs,
					Attrs:     cmd.attrs,
					Payload:   cmd.payload,
				},
			}
			pendingPubs = append(pendingPubs, pending{cmd: cmd, rec: rec, seq: seq})
		case ackCmd:
			cursorUpdates = append(cursorUpdates, durablelog.CursorUpdate{TopicID: cmd.topicID, Group: cmd.group, NewAck: cmd.sequence})
			ackCmds = append(ackCmds, cmd)
		case ensureTopicCmd:
			ensureCmds = append(ensureCmds, cmd)
		}
	}

	for _, cmd := range ensureCmds {
		t, err := resolve(cmd.name)
		cmd.reply <- ensureTopicOutcome{topic: t, err: err}
	}

	if len(pendingPubs) == 0 && len(cursorUpdates) == 0 {
		return
	}

	pubRecords := make([]durablelog.PublishRecord, len(pendingPubs))
	seqs := make([]uint64, len(pendingPubs))
	postTails := make(map[uint64]uint64, len(counters))
	for i, p := range pendingPubs {
		pubRecords[i] = p.rec
		seqs[i] = p.seq
		if p.seq > postTails[p.rec.TopicID] {
			postTails[p.rec.TopicID] = p.seq
		}
	}

	err := c.store.CommitBatch(context.Background(), pubRecords, seqs, postTails, cursorUpdates)
	if err != nil {
		for _, p := range pendingPubs {
			p.cmd.reply <- publishOutcome{err: errs.Wrap(errs.Internal, "writer.flush", err)}
		}
		for _, ack := range ackCmds {
			ack.reply <- errs.Wrap(errs.Internal, "writer.flush", err)
		}
		if c.logger != nil {
			c.logger.Error("batch commit failed", log.Err(err), log.Int("batch_size", len(cmds)))
		}
		return
	}

	for i, p := range pendingPubs {
		p.cmd.reply <- publishOutcome{result: PublishResult{MessageID: p.rec.Record.MessageID, Sequence: seqs[i]}}
	}
	for _, ack := range ackCmds {
		ack.reply <- nil
	}
	for topicID, tail := range postTails {
		c.registry.UpdateTail(topicID, tail)
	}

	c.metrics.ObservePublishCommitted(len(pendingPubs), time.Since(start))
	c.metrics.ObserveBatchSize(len(cmds))
}
